package cloudinit

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/naming"
)

// Netplan describes the static configuration of the bridged guest interface.
type Netplan struct {
	Interface  string
	MACAddress string // optional, pins the interface by MAC
	Address    string // CIDR
	Gateway    string
	DNS        []string

	macErr error
}

// NetplanFromSpec derives the netplan settings for spec.
func NetplanFromSpec(g *config.GlobalConfig, spec config.InstanceSpec) Netplan {
	n := Netplan{
		Interface: g.Interface,
		Address:   spec.IP,
		Gateway:   spec.Gateway,
		DNS:       spec.DNS,
	}
	if n.Interface == "" {
		n.Interface = config.DefaultInterface
	}
	if g.PinMAC {
		n.MACAddress, n.macErr = naming.MACFromIP(spec.IP)
	}
	return n
}

// Lists are written in flow style, e.g. "addresses: [8.8.8.8,8.8.4.4]".
var netplanTemplate = template.Must(template.New("netplan").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(`network:
  version: 2
  ethernets:
    {{ .Interface }}:
{{- if .MACAddress }}
      match:
        macaddress: {{ .MACAddress }}
      set-name: {{ .Interface }}
{{- end }}
      dhcp4: false
      addresses: [{{ .Address }}]
      nameservers:
        addresses: [{{ join .DNS "," }}]
      routes:
        - to: default
          via: {{ .Gateway }}
`))

// RenderNetplan renders n as a netplan v2 document.
func RenderNetplan(n Netplan) (string, error) {
	if n.macErr != nil {
		return "", fmt.Errorf("failed to derive MAC address: %w", n.macErr)
	}
	if n.Address == "" {
		return "", fmt.Errorf("ip is required")
	}
	if n.Gateway == "" {
		return "", fmt.Errorf("gateway is required")
	}
	if len(n.DNS) == 0 {
		return "", fmt.Errorf("at least one dns server is required")
	}

	var buf bytes.Buffer
	if err := netplanTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render netplan: %w", err)
	}
	return buf.String(), nil
}
