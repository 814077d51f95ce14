package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/langburd/ubuntu-multipass-deployment/internal/fleet"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatInstances formats instances as a table.
func (f *TableFormatter) FormatInstances(instances []multipass.Instance) (string, error) {
	if len(instances) == 0 {
		return "No instances found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tIPV4\tRELEASE")
	}

	for _, inst := range instances {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			inst.Name, orDash(inst.State), orDash(strings.Join(inst.IPv4, ",")), orDash(inst.Release))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatResults formats deployment results as a table.
func (f *TableFormatter) FormatResults(results []fleet.Result) (string, error) {
	if len(results) == 0 {
		return "No instances provisioned\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "INSTANCE\tSTATUS\tPHASE\tDURATION\tERROR")
	}

	for _, r := range results {
		v := NewResultView(r)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.Instance, v.Status, v.Phase, formatAge(r.Duration), orDash(v.Error))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatNetworks formats host networks as a table.
func (f *TableFormatter) FormatNetworks(networks []multipass.Network) (string, error) {
	if len(networks) == 0 {
		return "No networks found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
	}
	for _, n := range networks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", n.Name, orDash(n.Type), orDash(n.Description))
	}

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a short human-readable string.
// Examples: "5s", "2m", "3h", "4d"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dd", hours/24)
}
