package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
)

// PowerShell is the executable used to run Hyper-V cmdlets.
const PowerShell = "powershell"

// HyperVHost manages Hyper-V virtual switches through PowerShell.
type HyperVHost struct {
	runner execcontext.Runner
}

// NewHyperVHost returns a HyperVHost running cmdlets through runner.
func NewHyperVHost(runner execcontext.Runner) *HyperVHost {
	return &HyperVHost{runner: runner}
}

// SwitchExists implements SwitchHost.
func (h *HyperVHost) SwitchExists(ctx context.Context, name string) (bool, error) {
	out, err := h.powershell(ctx, fmt.Sprintf(
		"Get-VMSwitch -Name %s -ErrorAction SilentlyContinue | Select-Object -ExpandProperty Name",
		quotePS(name)))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out.Stdout)) != "", nil
}

// netAdapter is the subset of Get-NetAdapter fields we read.
type netAdapter struct {
	Name                 string `json:"Name"`
	InterfaceDescription string `json:"InterfaceDescription"`
	MacAddress           string `json:"MacAddress"`
}

// ListAdapters implements SwitchHost.
func (h *HyperVHost) ListAdapters(ctx context.Context) ([]Adapter, error) {
	out, err := h.powershell(ctx,
		"Get-NetAdapter -Physical | Select-Object Name,InterfaceDescription,MacAddress | ConvertTo-Json")
	if err != nil {
		return nil, err
	}
	return parseNetAdapters(out.Stdout)
}

// CreateSwitch implements SwitchHost.
func (h *HyperVHost) CreateSwitch(ctx context.Context, name string, adapter Adapter) error {
	_, err := h.powershell(ctx, fmt.Sprintf(
		"New-VMSwitch -Name %s -NetAdapterName %s -AllowManagementOS $true",
		quotePS(name), quotePS(adapter.Name)))
	return err
}

func (h *HyperVHost) powershell(ctx context.Context, command string) (execcontext.Output, error) {
	return h.runner.Run(ctx, PowerShell, "-NoProfile", "-NonInteractive", "-Command", command)
}

// parseNetAdapters accepts ConvertTo-Json output, which is a bare object when
// exactly one adapter exists and an array otherwise.
func parseNetAdapters(data []byte) ([]Adapter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []netAdapter
	if data[0] == '{' {
		var one netAdapter
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("failed to parse Get-NetAdapter output: %w", err)
		}
		raw = []netAdapter{one}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Get-NetAdapter output: %w", err)
	}

	adapters := make([]Adapter, 0, len(raw))
	for _, a := range raw {
		adapters = append(adapters, Adapter{
			Name:        a.Name,
			Description: a.InterfaceDescription,
			MAC:         a.MacAddress,
		})
	}
	return adapters, nil
}

// quotePS wraps s in a single-quoted PowerShell string literal.
func quotePS(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
