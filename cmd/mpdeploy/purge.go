package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <instance>...",
	Short: "Delete and purge instances",
	Long: `Delete and purge the named instances.

Instances that do not exist are reported and skipped; this is not an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		mp := multipass.NewClient(newRunner(), logger)
		out := cmd.OutOrStdout()

		var failed int
		for _, name := range args {
			outcome, err := mp.Delete(cmd.Context(), name)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			case outcome == multipass.AlreadyAbsent:
				fmt.Fprintf(out, "✓ %s does not exist\n", name)
			default:
				fmt.Fprintf(out, "✓ %s purged\n", name)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d instance(s) could not be purged", failed, len(args))
		}
		return nil
	},
}
