package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/langburd/ubuntu-multipass-deployment/internal/fleet"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatInstances formats instances as a YAML sequence.
func (f *YAMLFormatter) FormatInstances(instances []multipass.Instance) (string, error) {
	if len(instances) == 0 {
		return "[]\n", nil
	}

	data, err := yaml.Marshal(instances)
	if err != nil {
		return "", fmt.Errorf("failed to marshal instances to YAML: %w", err)
	}

	return string(data), nil
}

// FormatResults formats deployment results as a YAML sequence.
func (f *YAMLFormatter) FormatResults(results []fleet.Result) (string, error) {
	if len(results) == 0 {
		return "[]\n", nil
	}

	data, err := yaml.Marshal(resultViews(results))
	if err != nil {
		return "", fmt.Errorf("failed to marshal results to YAML: %w", err)
	}

	return string(data), nil
}

// FormatNetworks formats host networks as a YAML sequence.
func (f *YAMLFormatter) FormatNetworks(networks []multipass.Network) (string, error) {
	if len(networks) == 0 {
		return "[]\n", nil
	}

	data, err := yaml.Marshal(networks)
	if err != nil {
		return "", fmt.Errorf("failed to marshal networks to YAML: %w", err)
	}

	return string(data), nil
}
