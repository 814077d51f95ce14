package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose bool
	useSudo bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mpdeploy",
	Short: "mpdeploy - declarative Multipass fleet provisioning",
	Long: `mpdeploy provisions a fleet of Multipass instances with static, bridged
addressing from a YAML configuration file.

Every instance is purged, given a freshly rendered cloud-init document and
launched, one at a time in the order the file declares them.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&useSudo, "sudo", false, "Run external commands through sudo")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(validateCmd)
}

// newLogger builds the process logger. Without --verbose only warnings and
// errors are logged; progress goes to stdout.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newRunner() execcontext.Runner {
	return execcontext.NewRunner(execcontext.New(nil, sudoPrefix()))
}

func sudoPrefix() []string {
	if useSudo {
		return []string{"sudo"}
	}
	return nil
}

// configPath returns the optional positional config argument.
func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
