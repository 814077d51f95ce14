package output

import (
	"encoding/json"
	"fmt"

	"github.com/langburd/ubuntu-multipass-deployment/internal/fleet"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatInstances formats instances as a JSON array.
func (f *JSONFormatter) FormatInstances(instances []multipass.Instance) (string, error) {
	if len(instances) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(instances, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal instances to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatResults formats deployment results as a JSON array.
func (f *JSONFormatter) FormatResults(results []fleet.Result) (string, error) {
	if len(results) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(resultViews(results), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatNetworks formats host networks as a JSON array.
func (f *JSONFormatter) FormatNetworks(networks []multipass.Network) (string, error) {
	if len(networks) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(networks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal networks to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
