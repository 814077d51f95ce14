package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/langburd/ubuntu-multipass-deployment/internal/libvirt"
)

// LibvirtAPI is the part of the libvirt client the resolver uses.
type LibvirtAPI interface {
	LookupNetwork(name string) (*libvirt.NetworkInfo, error)
	ListInterfaces() ([]libvirt.HostInterface, error)
	CreateBridgeNetwork(name, bridge string) error
}

// LibvirtHost treats libvirt networks as switches. A new switch is a network
// forwarding to a host bridge the operator picks. Multipass attaches to the
// bridge itself, so the attachment is named after it.
type LibvirtHost struct {
	client LibvirtAPI
}

// NewLibvirtHost returns a LibvirtHost backed by client.
func NewLibvirtHost(client LibvirtAPI) *LibvirtHost {
	return &LibvirtHost{client: client}
}

// SwitchExists implements SwitchHost.
func (h *LibvirtHost) SwitchExists(_ context.Context, name string) (bool, error) {
	_, err := h.client.LookupNetwork(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, libvirt.ErrNetworkNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ListAdapters implements SwitchHost. Only Linux bridges are offered: a
// bridge-forward network cannot be built on a plain NIC.
func (h *LibvirtHost) ListAdapters(context.Context) ([]Adapter, error) {
	ifaces, err := h.client.ListInterfaces()
	if err != nil {
		return nil, err
	}

	adapters := make([]Adapter, 0, len(ifaces))
	for _, iface := range ifaces {
		if !iface.Bridge {
			continue
		}
		adapters = append(adapters, Adapter{Name: iface.Name, Description: "bridge", MAC: iface.MAC})
	}
	return adapters, nil
}

// CreateSwitch implements SwitchHost.
func (h *LibvirtHost) CreateSwitch(_ context.Context, name string, adapter Adapter) error {
	return h.client.CreateBridgeNetwork(name, adapter.Name)
}

// NetworkName implements NetworkNamer. It returns the host bridge behind the
// libvirt network, which is what multipass lists and accepts for --network.
func (h *LibvirtHost) NetworkName(_ context.Context, switchName string) (string, error) {
	info, err := h.client.LookupNetwork(switchName)
	if err != nil {
		return "", err
	}
	if info.Bridge == "" {
		return "", fmt.Errorf("libvirt network %s has no bridge to attach to", switchName)
	}
	return info.Bridge, nil
}
