package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, normalizes and validates the configuration at path. An empty
// path searches DefaultFileNames in the working directory.
//
// For the extended variant the secret files are read as well, so that every
// failure surfaces before any instance is touched.
func Load(path string) (*Config, error) {
	resolved, err := findConfig(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, resolved)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfigMalformed, resolved, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resolved, err)
	}
	cfg.Path = resolved

	vaultExplicit := cfg.VaultPasswordFile != ""
	if cfg.Extended() && !vaultExplicit {
		cfg.VaultPasswordFile = DefaultVaultPasswordFile
	}

	cfg.Normalize(filepath.Dir(resolved))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigMalformed, resolved, err)
	}

	if cfg.Extended() {
		secrets, err := LoadSecrets(&cfg.GlobalConfig, vaultExplicit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigMalformed, err)
		}
		cfg.Secrets = secrets
	}

	return cfg, nil
}

// Parse decodes configuration YAML without normalizing or validating it.
func Parse(data []byte) (*Config, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: file is empty", ErrConfigMalformed)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrConfigMalformed, err)
	}

	return &cfg, nil
}

func findConfig(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s does not exist", ErrConfigMissing, path)
			}
			return "", fmt.Errorf("%w: %s: %w", ErrConfigMalformed, path, err)
		}
		return path, nil
	}

	for _, name := range DefaultFileNames {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: no path given and none of %s found in the working directory",
		ErrConfigMissing, strings.Join(DefaultFileNames, ", "))
}
