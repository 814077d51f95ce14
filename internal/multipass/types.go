// Package multipass drives the multipass CLI: purge, launch, list and
// network discovery.
package multipass

import (
	"errors"
	"strings"
	"time"
)

// ErrToolingAbsent is returned when the multipass binary cannot be found or
// executed.
var ErrToolingAbsent = errors.New("multipass is not installed or not on PATH")

// DeleteOutcome is the result of a purge that did not fail.
type DeleteOutcome int

const (
	// Deleted means an existing instance was removed.
	Deleted DeleteOutcome = iota
	// AlreadyAbsent means there was nothing to remove.
	AlreadyAbsent
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyAbsent:
		return "already-absent"
	default:
		return "unknown"
	}
}

// Instance is one entry of "multipass list".
type Instance struct {
	Name    string   `json:"name" yaml:"name"`
	State   string   `json:"state" yaml:"state"`
	Release string   `json:"release" yaml:"release"`
	IPv4    []string `json:"ipv4" yaml:"ipv4"`
}

// Network is one host network reported by "multipass networks".
type Network struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// LaunchOptions controls instance creation.
type LaunchOptions struct {
	Name          string
	Image         string
	CPUs          int
	Memory        string
	Disk          string
	CloudInitFile string
	Networks      []NetworkAttachment
	Timeout       time.Duration
}

// NetworkAttachment is one --network argument.
type NetworkAttachment struct {
	Name string
	Mode string
	MAC  string
}

// Arg renders the attachment in the form "name=X,mode=manual[,mac=..]".
func (n NetworkAttachment) Arg() string {
	parts := []string{"name=" + n.Name}
	if n.Mode != "" {
		parts = append(parts, "mode="+n.Mode)
	}
	if n.MAC != "" {
		parts = append(parts, "mac="+n.MAC)
	}
	return strings.Join(parts, ",")
}
