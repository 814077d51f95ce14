package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/langburd/ubuntu-multipass-deployment/internal/cloudinit"
	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
	"github.com/langburd/ubuntu-multipass-deployment/internal/fleet"
	"github.com/langburd/ubuntu-multipass-deployment/internal/libvirt"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
	"github.com/langburd/ubuntu-multipass-deployment/internal/naming"
	"github.com/langburd/ubuntu-multipass-deployment/internal/network"
	"github.com/langburd/ubuntu-multipass-deployment/internal/output"
)

var (
	deployFailFast bool
	deployStrict   bool
	deployDryRun   bool
	deployOutput   string
)

var deployCmd = &cobra.Command{
	Use:   "deploy [config.yaml]",
	Short: "Purge and relaunch every instance in the configuration",
	Long: `Deploy the fleet described by a configuration file.

Without an argument, config.yaml or config.yml in the working directory is used.

For every instance, in declaration order:
- Delete any existing instance of the same name (--purge)
- Render its cloud-init document to a private temporary file
- Launch it on the configured switch
- Remove the temporary file

The switch is resolved once before any instance is touched. A failed instance
does not stop the run unless --fail-fast is set; the command exits non-zero
after the report when any instance failed.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(deployOutput)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deploying %d instance(s) from %s\n", len(cfg.Instances), cfg.Path)

		if deployDryRun {
			return dryRun(cmd.OutOrStdout(), cfg)
		}

		runner := newRunner()
		openResolver := func(ctx context.Context) (network.Resolver, func(), error) {
			return newResolver(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), logger, runner, &cfg.GlobalConfig)
		}
		return deploy(cmd.Context(), cmd.OutOrStdout(), logger, cfg, runner, openResolver)
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployFailFast, "fail-fast", false, "Stop at the first failed instance")
	deployCmd.Flags().BoolVar(&deployStrict, "strict", false, "Validate instance addressing before purging")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Print the commands that would run without touching any instance")
	deployCmd.Flags().StringVarP(&deployOutput, "output", "o", "table", "Report format (table|yaml|json)")
}

// resolverFactory opens the switch resolver. The returned func releases it.
type resolverFactory func(ctx context.Context) (network.Resolver, func(), error)

// deploy checks multipass and resolves the switch before any instance is
// touched, then runs the fleet and prints the results and the fleet report.
func deploy(ctx context.Context, out io.Writer, logger *zap.Logger, cfg *config.Config, runner execcontext.Runner, openResolver resolverFactory) error {
	mp := multipass.NewClient(runner, logger)

	mpVersion, err := mp.CheckInstalled(ctx)
	if err != nil {
		return err
	}
	logger.Debug("found multipass", zap.String("version", mpVersion))

	resolver, closeResolver, err := openResolver(ctx)
	if err != nil {
		return err
	}
	defer closeResolver()

	att, err := resolver.Resolve(ctx, cfg.Switch())
	if err != nil {
		return err
	}
	switchLabel := att.Switch
	if att.Target() != att.Switch {
		switchLabel = fmt.Sprintf("%s (bridge %s)", att.Switch, att.Target())
	}
	if att.Created {
		fmt.Fprintf(out, "✓ Switch %s created\n", switchLabel)
	} else {
		fmt.Fprintf(out, "✓ Using switch %s\n", switchLabel)
	}

	controller := fleet.NewController(mp, fleet.Options{
		Logger:   logger,
		Out:      out,
		FailFast: deployFailFast,
		Strict:   deployStrict,
	})
	logger.Info("starting run", zap.String("run_id", controller.RunID()), zap.Int("instances", len(cfg.Instances)))

	results := controller.Run(ctx, &cfg.GlobalConfig, att, cfg.Instances)

	formatter, err := output.NewFormatter(output.Options{Format: output.Format(deployOutput)})
	if err != nil {
		return err
	}

	summary, err := formatter.FormatResults(results)
	if err != nil {
		return err
	}
	fmt.Fprint(out, "\n"+summary)

	// The report runs on a fresh context so an interrupted run still lists
	// what exists.
	instances, err := controller.Report(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("fleet report unavailable", zap.Error(err))
	} else {
		report, err := formatter.FormatInstances(instances)
		if err != nil {
			return err
		}
		fmt.Fprint(out, "\n"+report)
	}

	if failed := fleet.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d instance(s) failed: %w", len(failed), len(cfg.Instances), fleet.Err(results))
	}
	if len(results) < len(cfg.Instances) {
		return fmt.Errorf("run stopped after %d of %d instance(s): %w", len(results), len(cfg.Instances), ctx.Err())
	}
	return nil
}

// newResolver selects the switch resolver for this host. The returned func
// releases any connection it opened.
func newResolver(ctx context.Context, in io.Reader, out io.Writer, logger *zap.Logger, runner execcontext.Runner, g *config.GlobalConfig) (network.Resolver, func(), error) {
	deps := network.Deps{
		Runner:   runner,
		Prompter: network.NewTerminalPrompter(in, out),
		Logger:   logger,
	}
	closer := func() {}

	if network.BackendFor(g.NetworkBackend, runtime.GOOS) == config.BackendLibvirt {
		client, err := libvirt.ConnectWithContext(ctx, g.LibvirtSocket, 0, logger)
		if err != nil {
			return nil, nil, err
		}
		deps.Libvirt = client
		closer = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close libvirt connection", zap.Error(err))
			}
		}
	}

	resolver, err := network.New(g.NetworkBackend, runtime.GOOS, deps)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return resolver, closer, nil
}

// dryRun prints the purge and launch commands for every instance. The switch
// is not resolved and nothing is written.
func dryRun(out io.Writer, cfg *config.Config) error {
	att := network.Attachment{Switch: cfg.Switch(), Mode: network.ManualMode}
	execCtx := execcontext.New(nil, sudoPrefix())

	for _, spec := range cfg.Instances {
		doc, err := cloudinit.Synthesize(&cfg.GlobalConfig, spec)
		if err != nil {
			return err
		}

		var mac string
		if cfg.PinMAC {
			if mac, err = naming.MACFromIP(spec.IP); err != nil {
				return fmt.Errorf("instance %s: %w", spec.Name, err)
			}
		}

		args, err := multipass.LaunchArgs(multipass.LaunchOptions{
			Name:          spec.Name,
			Image:         cfg.Image,
			CPUs:          cfg.CPUs,
			Memory:        cfg.Memory,
			Disk:          cfg.Disk,
			CloudInitFile: "<tmp>/" + doc.FileName,
			Networks:      []multipass.NetworkAttachment{att.NetworkAttachment(mac)},
			Timeout:       cfg.LaunchTimeout,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "# %s (%d bytes of cloud-init)\n", spec.Name, len(doc.Content))
		fmt.Fprintln(out, execcontext.FormatCmd(execCtx, multipass.DefaultBinary, "delete", "--purge", spec.Name))
		fmt.Fprintln(out, execcontext.FormatCmd(execCtx, append([]string{multipass.DefaultBinary}, args...)...))
	}

	fmt.Fprintln(out, "# dry run: no instance was touched")
	return nil
}
