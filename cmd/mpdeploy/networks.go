package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
	"github.com/langburd/ubuntu-multipass-deployment/internal/output"
)

var networksOutput string

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List host networks multipass can bridge instances to",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(networksOutput)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		networks, err := multipass.NewClient(newRunner(), logger).Networks(cmd.Context())
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{Format: output.Format(networksOutput)})
		if err != nil {
			return err
		}
		out, err := formatter.FormatNetworks(networks)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	networksCmd.Flags().StringVarP(&networksOutput, "output", "o", "table", "Output format (table|yaml|json)")
}
