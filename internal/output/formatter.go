// Package output provides formatters for the fleet report and the per-instance
// deployment results in various formats (table, YAML, JSON).
package output

import (
	"fmt"
	"time"

	"github.com/langburd/ubuntu-multipass-deployment/internal/fleet"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats fleet state for output.
type Formatter interface {
	// FormatInstances formats the instances reported by multipass.
	FormatInstances(instances []multipass.Instance) (string, error)

	// FormatResults formats the outcome of a deployment run.
	FormatResults(results []fleet.Result) (string, error)

	// FormatNetworks formats the host networks multipass can bridge to.
	FormatNetworks(networks []multipass.Network) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable, "":
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}

// ResultView is the serializable form of a fleet.Result.
type ResultView struct {
	Instance string `json:"instance" yaml:"instance"`
	Status   string `json:"status" yaml:"status"`
	Phase    string `json:"phase" yaml:"phase"`
	Purge    string `json:"purge,omitempty" yaml:"purge,omitempty"`
	Duration string `json:"duration" yaml:"duration"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewResultView converts r for serialization.
func NewResultView(r fleet.Result) ResultView {
	v := ResultView{
		Instance: r.Instance,
		Status:   "launched",
		Phase:    string(r.Phase),
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	if r.Phase != fleet.PhaseValidate && r.Phase != fleet.PhasePurge {
		v.Purge = r.Purge.String()
	}
	if r.Err != nil {
		v.Status = "failed"
		v.Error = r.Err.Error()
	}
	return v
}

func resultViews(results []fleet.Result) []ResultView {
	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, NewResultView(r))
	}
	return views
}
