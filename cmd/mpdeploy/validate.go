package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config.yaml]",
	Short: "Check a configuration file, including instance addressing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		if err := cfg.ValidateInstances(); err != nil {
			return fmt.Errorf("%w: %s: %w", config.ErrConfigMalformed, cfg.Path, err)
		}

		variant := "identity"
		if cfg.Extended() {
			variant = "extended"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid: %d instance(s), switch %q, %s variant\n",
			cfg.Path, len(cfg.Instances), cfg.Switch(), variant)
		return nil
	},
}
