package libvirt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"go.uber.org/zap"
	"libvirt.org/go/libvirtxml"
)

var (
	// ErrNetworkNotFound is returned when no libvirt network has the requested name.
	ErrNetworkNotFound = errors.New("libvirt network not found")

	ErrDefineNetwork = errors.New("failed to define libvirt network")
	ErrStartNetwork  = errors.New("failed to start libvirt network")
)

// NetworkInfo describes an existing libvirt network.
type NetworkInfo struct {
	Name   string
	Bridge string
	Mode   string
}

// HostInterface is a host network interface known to libvirt.
type HostInterface struct {
	Name   string
	MAC    string
	Bridge bool
}

// LookupNetwork returns the named network, or ErrNetworkNotFound.
func (c *Client) LookupNetwork(name string) (*NetworkInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("network name is required")
	}
	if c.libvirt == nil {
		return nil, fmt.Errorf("client not connected")
	}

	net, err := c.libvirt.NetworkLookupByName(name)
	if err != nil {
		if isNoNetwork(err) {
			return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
		}
		return nil, fmt.Errorf("failed to look up network %s: %w", name, err)
	}

	desc, err := c.libvirt.NetworkGetXMLDesc(net, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get XML of network %s: %w", name, err)
	}

	var doc libvirtxml.Network
	if err := doc.Unmarshal(desc); err != nil {
		return nil, fmt.Errorf("failed to parse XML of network %s: %w", name, err)
	}

	info := &NetworkInfo{Name: name, Mode: "isolated"}
	if doc.Bridge != nil {
		info.Bridge = doc.Bridge.Name
	}
	if doc.Forward != nil {
		info.Mode = doc.Forward.Mode
	}

	return info, nil
}

// ListInterfaces returns the host interfaces libvirt can see, loopback
// excluded, with Bridge set for Linux bridges.
func (c *Client) ListInterfaces() ([]HostInterface, error) {
	if c.libvirt == nil {
		return nil, fmt.Errorf("client not connected")
	}

	ifaces, _, err := c.libvirt.ConnectListAllInterfaces(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list host interfaces: %w", err)
	}

	out := make([]HostInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}

		desc, err := c.libvirt.InterfaceGetXMLDesc(iface, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get XML of interface %s: %w", iface.Name, err)
		}
		bridge, err := isBridgeInterface(desc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML of interface %s: %w", iface.Name, err)
		}

		out = append(out, HostInterface{Name: iface.Name, MAC: iface.Mac, Bridge: bridge})
	}

	return out, nil
}

func isBridgeInterface(desc string) (bool, error) {
	var doc libvirtxml.Interface
	if err := doc.Unmarshal(desc); err != nil {
		return false, err
	}
	return doc.Bridge != nil, nil
}

// CreateBridgeNetwork defines, starts and autostarts a network named name that
// forwards to the existing host bridge.
func (c *Client) CreateBridgeNetwork(name, bridge string) error {
	xml, err := GenerateBridgeNetworkXML(name, bridge)
	if err != nil {
		return err
	}
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	net, err := c.libvirt.NetworkDefineXML(xml)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrDefineNetwork, name, err)
	}

	if err := c.libvirt.NetworkCreate(net); err != nil {
		err = fmt.Errorf("%w %s: %w", ErrStartNetwork, name, err)
		if uerr := c.libvirt.NetworkUndefine(net); uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to undefine network %s: %w", name, uerr))
		}
		return err
	}

	// The network is running either way; without autostart it is gone after a reboot.
	if err := c.libvirt.NetworkSetAutostart(net, 1); err != nil {
		c.logger.Warn("failed to enable network autostart",
			zap.String("network", name),
			zap.Error(err))
	}

	return nil
}

// GenerateBridgeNetworkXML renders a libvirt network in bridge forward mode.
func GenerateBridgeNetworkXML(name, bridge string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("network name is required")
	}
	if bridge == "" {
		return "", fmt.Errorf("bridge name is required for network %s", name)
	}

	network := &libvirtxml.Network{
		Name: name,
		Forward: &libvirtxml.NetworkForward{
			Mode: "bridge",
		},
		Bridge: &libvirtxml.NetworkBridge{
			Name: bridge,
		},
	}

	xml, err := network.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal network XML: %w", err)
	}

	return xml, nil
}

func isNoNetwork(err error) bool {
	var lerr libvirt.Error
	if errors.As(err, &lerr) && lerr.Code == uint32(libvirt.ErrNoNetwork) {
		return true
	}
	return strings.Contains(err.Error(), "Network not found")
}
