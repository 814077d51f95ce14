// Package naming holds the naming conventions shared by the synthesizer, the
// controller and the CLI: artifact file names, deterministic MAC addresses and
// guest-side paths.
package naming

import (
	"fmt"
	"net"
	"path"
	"strings"
)

// CloudInitFileName returns the file name of an instance's cloud-init document.
// Format: {name}-cloud-init.yaml
func CloudInitFileName(instance string) string {
	return fmt.Sprintf("%s-cloud-init.yaml", instance)
}

// SeedISOName returns the file name of an instance's NoCloud seed ISO.
// Format: {name}-cidata.iso
func SeedISOName(instance string) string {
	return fmt.Sprintf("%s-cidata.iso", instance)
}

// MACFromIP calculates a deterministic, locally administered MAC address from
// an IPv4 address.
//
// Example: IP 192.168.8.53/23 → MAC be:ef:c0:a8:08:35
func MACFromIP(ip string) (string, error) {
	ipv4, err := parseIPv4(ip)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		ipv4[0], ipv4[1], ipv4[2], ipv4[3]), nil
}

// RepositoryDir returns the directory name git uses when cloning repo.
//
// Example: "octocat/homelab.git" → "homelab"
func RepositoryDir(repo string) string {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), "/")
	if i := strings.LastIndex(repo, ":"); i >= 0 {
		repo = repo[i+1:]
	}
	return strings.TrimSuffix(path.Base(repo), ".git")
}

// parseIPv4 accepts "10.1.2.3" or "10.1.2.3/24".
func parseIPv4(ip string) (net.IP, error) {
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return nil, fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipStr)
	}

	ipv4 := parsedIP.To4()
	if ipv4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ipStr)
	}

	return ipv4, nil
}
