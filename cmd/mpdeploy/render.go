package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/langburd/ubuntu-multipass-deployment/internal/cloudinit"
	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/naming"
)

var (
	renderOutDir string
	renderISO    bool
)

var renderCmd = &cobra.Command{
	Use:   "render [config.yaml]",
	Short: "Write the cloud-init documents without launching anything",
	Long: `Render the cloud-init document of every instance into a directory.

Files are named <instance>-cloud-init.yaml and written with mode 0600, since
the extended configuration embeds private key material. With --iso a NoCloud
seed image (<instance>-cidata.iso) is written next to each document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), cfg, renderOutDir, renderISO)
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderOutDir, "out", ".", "Directory to write documents to")
	renderCmd.Flags().BoolVar(&renderISO, "iso", false, "Also write a NoCloud seed ISO per instance")
}

func render(out io.Writer, cfg *config.Config, dir string, iso bool) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, spec := range cfg.Instances {
		doc, err := cloudinit.Synthesize(&cfg.GlobalConfig, spec)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, doc.FileName)
		if err := os.WriteFile(path, doc.Content, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(out, "✓ %s\n", path)

		if !iso {
			continue
		}

		meta, err := cloudinit.GenerateMetaData(spec)
		if err != nil {
			return err
		}
		image, err := cloudinit.GenerateSeedISO(doc, meta)
		if err != nil {
			return fmt.Errorf("instance %s: %w", spec.Name, err)
		}

		isoPath := filepath.Join(dir, naming.SeedISOName(spec.Name))
		if err := os.WriteFile(isoPath, image, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", isoPath, err)
		}
		fmt.Fprintf(out, "✓ %s\n", isoPath)
	}

	return nil
}
