// Package config loads and validates the fleet configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	// ErrConfigMissing is returned when no configuration file can be found.
	ErrConfigMissing = errors.New("configuration not found")
	// ErrConfigMalformed is returned when the configuration cannot be parsed or
	// lacks required fields.
	ErrConfigMalformed = errors.New("configuration is malformed")
)

const (
	DefaultMemory            = "1G"
	DefaultLaunchTimeout     = 10 * time.Minute
	DefaultInterface         = "eth0"
	DefaultPlaybook          = "local.yml"
	DefaultVaultPasswordFile = ".vault_pass"
)

// DefaultFileNames are looked up in the working directory when no path is given.
var DefaultFileNames = []string{"config.yaml", "config.yml"}

// NetworkBackend selects how the host switch is resolved.
type NetworkBackend string

const (
	// BackendAuto picks a backend from the host OS.
	BackendAuto NetworkBackend = "auto"
	// BackendHyperV uses a named Hyper-V virtual switch.
	BackendHyperV NetworkBackend = "hyperv"
	// BackendBridged uses a manually bridged host interface.
	BackendBridged NetworkBackend = "bridged"
	// BackendLibvirt uses a libvirt bridge network.
	BackendLibvirt NetworkBackend = "libvirt"
)

// Config is the complete deployment file: global settings plus instances in
// declaration order.
type Config struct {
	GlobalConfig `yaml:",inline"`
	Instances    []InstanceSpec `yaml:"instances"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-"`
}

// GlobalConfig holds settings shared by every instance.
type GlobalConfig struct {
	// Identity used for ssh_import_id (gh:<username>).
	GitUsername string `yaml:"git_username,omitempty"`

	WindowsSwitchName string `yaml:"windows_switch_name,omitempty"`
	SwitchName        string `yaml:"switch_name,omitempty"`

	// Extended variant: secret bundle and bootstrap repository.
	GitHost           string `yaml:"git_host,omitempty"`
	GitRepository     string `yaml:"git_repository,omitempty"`
	SSHKey            string `yaml:"ssh_key,omitempty"`
	SSHKeyPub         string `yaml:"ssh_key_pub,omitempty"`
	VaultPasswordFile string `yaml:"vault_password_file,omitempty"`
	Playbook          string `yaml:"playbook,omitempty"`

	Memory         string         `yaml:"memory,omitempty"`
	CPUs           int            `yaml:"cpus,omitempty"`
	Disk           string         `yaml:"disk,omitempty"`
	Image          string         `yaml:"image,omitempty"`
	LaunchTimeout  time.Duration  `yaml:"launch_timeout,omitempty"`
	NetworkBackend NetworkBackend `yaml:"network_backend,omitempty"`
	Interface      string         `yaml:"interface,omitempty"`
	PinMAC         bool           `yaml:"pin_mac,omitempty"`
	LibvirtSocket  string         `yaml:"libvirt_socket,omitempty"`

	// Secrets is populated by Load for the extended variant.
	Secrets *Secrets `yaml:"-"`
}

// InstanceSpec describes one VM.
type InstanceSpec struct {
	Name    string   `yaml:"name"`
	IP      string   `yaml:"ip"` // CIDR, e.g. "192.168.8.53/23"
	Gateway string   `yaml:"gateway"`
	DNS     []string `yaml:"dns"`
}

// Switch returns the configured switch name. windows_switch_name takes
// precedence over switch_name.
func (g *GlobalConfig) Switch() string {
	if g.WindowsSwitchName != "" {
		return g.WindowsSwitchName
	}
	return g.SwitchName
}

// Extended reports whether the secret bundle variant is configured.
func (g *GlobalConfig) Extended() bool {
	return g.SSHKey != "" || g.SSHKeyPub != "" || g.GitRepository != ""
}

// IdentityRef returns the ssh_import_id reference for the identity variant.
func (g *GlobalConfig) IdentityRef() string {
	if g.GitUsername == "" {
		return ""
	}
	return "gh:" + g.GitUsername
}

// Validate checks that required fields are present and well shaped. Address
// formats are only checked by InstanceSpec.Validate.
func (c *Config) Validate() error {
	if err := c.GlobalConfig.Validate(); err != nil {
		return err
	}

	if len(c.Instances) == 0 {
		return fmt.Errorf("at least one entry in instances is required")
	}

	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		if err := inst.validateShape(); err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}
		if seen[inst.Name] {
			return fmt.Errorf("instances[%d]: duplicate name %q", i, inst.Name)
		}
		seen[inst.Name] = true
	}

	return nil
}

// Validate checks the global settings.
func (g *GlobalConfig) Validate() error {
	if g.Switch() == "" {
		return fmt.Errorf("windows_switch_name or switch_name is required")
	}

	if g.Extended() {
		missing := []string{}
		for key, val := range map[string]string{
			"git_host":       g.GitHost,
			"git_repository": g.GitRepository,
			"ssh_key":        g.SSHKey,
			"ssh_key_pub":    g.SSHKeyPub,
		} {
			if val == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf("extended configuration requires %s", strings.Join(missing, ", "))
		}
	} else if g.GitUsername == "" {
		return fmt.Errorf("git_username is required")
	}

	switch g.NetworkBackend {
	case "", BackendAuto, BackendHyperV, BackendBridged, BackendLibvirt:
	default:
		return fmt.Errorf("network_backend must be one of auto, hyperv, bridged, libvirt, got %q", g.NetworkBackend)
	}

	if g.LaunchTimeout < 0 {
		return fmt.Errorf("launch_timeout must not be negative, got %s", g.LaunchTimeout)
	}
	if g.CPUs < 0 {
		return fmt.Errorf("cpus must not be negative, got %d", g.CPUs)
	}

	return nil
}

func (s *InstanceSpec) validateShape() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.IP == "" {
		return fmt.Errorf("ip is required")
	}
	if s.Gateway == "" {
		return fmt.Errorf("gateway is required")
	}
	if len(s.DNS) == 0 {
		return fmt.Errorf("dns must list at least one server")
	}
	return nil
}

var instanceNamePattern = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// Validate performs strict format checks: a Multipass-compatible name, a CIDR
// address and plain IP gateway and nameservers.
func (s *InstanceSpec) Validate() error {
	if err := s.validateShape(); err != nil {
		return err
	}

	if !instanceNamePattern.MatchString(s.Name) {
		return fmt.Errorf("name must start with a letter and contain only letters, digits or hyphens, got %q", s.Name)
	}

	ip, ipnet, err := net.ParseCIDR(s.IP)
	if err != nil {
		return fmt.Errorf("invalid ip/cidr format %q: %w", s.IP, err)
	}
	if ip == nil || ipnet == nil {
		return fmt.Errorf("invalid ip/cidr format %q", s.IP)
	}

	if net.ParseIP(s.Gateway) == nil {
		return fmt.Errorf("invalid gateway IP address %q", s.Gateway)
	}

	for i, dns := range s.DNS {
		if net.ParseIP(dns) == nil {
			return fmt.Errorf("dns[%d] is not a valid IP address: %q", i, dns)
		}
	}

	return nil
}

// ValidateInstances runs InstanceSpec.Validate on every instance.
func (c *Config) ValidateInstances() error {
	for i := range c.Instances {
		if err := c.Instances[i].Validate(); err != nil {
			return fmt.Errorf("instances[%d] (%s): %w", i, c.Instances[i].Name, err)
		}
	}
	return nil
}

// Normalize trims user input and fills in defaults. Relative secret paths are
// resolved against baseDir, the directory holding the configuration file.
func (c *Config) Normalize(baseDir string) {
	g := &c.GlobalConfig

	g.GitUsername = strings.TrimSpace(g.GitUsername)
	g.WindowsSwitchName = strings.TrimSpace(g.WindowsSwitchName)
	g.SwitchName = strings.TrimSpace(g.SwitchName)
	g.GitHost = strings.TrimSpace(g.GitHost)
	g.GitRepository = strings.TrimSpace(g.GitRepository)

	if g.Memory == "" {
		g.Memory = DefaultMemory
	}
	if g.LaunchTimeout == 0 {
		g.LaunchTimeout = DefaultLaunchTimeout
	}
	if g.NetworkBackend == "" {
		g.NetworkBackend = BackendAuto
	}
	g.NetworkBackend = NetworkBackend(strings.ToLower(string(g.NetworkBackend)))
	if g.Interface == "" {
		g.Interface = DefaultInterface
	}
	if g.Playbook == "" {
		g.Playbook = DefaultPlaybook
	}

	g.SSHKey = resolvePath(baseDir, g.SSHKey)
	g.SSHKeyPub = resolvePath(baseDir, g.SSHKeyPub)
	g.VaultPasswordFile = resolvePath(baseDir, g.VaultPasswordFile)

	for i := range c.Instances {
		inst := &c.Instances[i]
		inst.Name = strings.TrimSpace(inst.Name)
		inst.IP = strings.TrimSpace(inst.IP)
		inst.Gateway = strings.TrimSpace(inst.Gateway)
		for j := range inst.DNS {
			inst.DNS[j] = strings.TrimSpace(inst.DNS[j])
		}
	}
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

