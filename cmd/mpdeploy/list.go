package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
	"github.com/langburd/ubuntu-multipass-deployment/internal/output"
)

var (
	listOutput    string
	listNoHeaders bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List multipass instances",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(listOutput)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		instances, err := multipass.NewClient(newRunner(), logger).List(cmd.Context())
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(listOutput),
			NoHeaders: listNoHeaders,
		})
		if err != nil {
			return err
		}

		out, err := formatter.FormatInstances(instances)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|yaml|json)")
	listCmd.Flags().BoolVar(&listNoHeaders, "no-headers", false, "Omit the table header")
}
