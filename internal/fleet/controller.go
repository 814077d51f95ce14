package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langburd/ubuntu-multipass-deployment/internal/cloudinit"
	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
	"github.com/langburd/ubuntu-multipass-deployment/internal/naming"
	"github.com/langburd/ubuntu-multipass-deployment/internal/network"
)

var (
	// ErrPurgeFailed means an existing instance could not be removed; its
	// launch is skipped.
	ErrPurgeFailed = errors.New("purge failed")
	// ErrLaunchFailed covers everything between a successful purge and a
	// running instance, including timeouts and interruption.
	ErrLaunchFailed = errors.New("launch failed")
)

// DefaultLaunchGrace is added to the launch timeout to form the hard deadline
// of the launch call, so multipass gets to report its own timeout first.
const DefaultLaunchGrace = 30 * time.Second

// Options configures a Controller.
type Options struct {
	Logger *zap.Logger
	// Out receives one progress line per instance. Nil discards them.
	Out io.Writer
	// TempDir is the parent of the per-instance directories. Empty means
	// os.TempDir().
	TempDir     string
	LaunchGrace time.Duration
	FailFast    bool
	// Strict validates instance addressing before purging.
	Strict bool
	RunID  string
}

// Controller provisions instances one at a time.
type Controller struct {
	vm          VMManager
	logger      *zap.Logger
	out         io.Writer
	tempDir     string
	launchGrace time.Duration
	failFast    bool
	strict      bool
	runID       string

	removeAll func(path string) error
}

// NewController returns a Controller that drives vm.
func NewController(vm VMManager, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	grace := opts.LaunchGrace
	if grace <= 0 {
		grace = DefaultLaunchGrace
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &Controller{
		vm:          vm,
		logger:      logger.With(zap.String("run_id", runID)),
		out:         out,
		tempDir:     opts.TempDir,
		launchGrace: grace,
		failFast:    opts.FailFast,
		strict:      opts.Strict,
		runID:       runID,
		removeAll:   os.RemoveAll,
	}
}

// RunID identifies this controller's run in logs.
func (c *Controller) RunID() string {
	return c.runID
}

// Run provisions instances in declaration order and returns one Result per
// instance attempted. Instances after a failure are still attempted unless
// FailFast is set. A cancelled context stops the loop.
func (c *Controller) Run(ctx context.Context, g *config.GlobalConfig, att network.Attachment, instances []config.InstanceSpec) []Result {
	results := make([]Result, 0, len(instances))

	for _, spec := range instances {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("run interrupted, remaining instances skipped",
				zap.Int("skipped", len(instances)-len(results)),
				zap.Error(err))
			break
		}

		res := c.provision(ctx, g, att, spec)
		results = append(results, res)
		c.progress(res)

		if res.Err != nil && c.failFast {
			c.logger.Warn("stopping after first failure",
				zap.String("instance", spec.Name),
				zap.Int("skipped", len(instances)-len(results)))
			break
		}
	}

	return results
}

// Provision runs purge, synthesize, launch and cleanup for a single instance.
func (c *Controller) Provision(ctx context.Context, g *config.GlobalConfig, att network.Attachment, spec config.InstanceSpec) error {
	return c.provision(ctx, g, att, spec).Err
}

// Report lists the VM manager's instances. It is queried once, after the
// loop, whatever the outcome of the run.
func (c *Controller) Report(ctx context.Context) ([]multipass.Instance, error) {
	instances, err := c.vm.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build fleet report: %w", err)
	}
	return instances, nil
}

func (c *Controller) provision(ctx context.Context, g *config.GlobalConfig, att network.Attachment, spec config.InstanceSpec) (res Result) {
	start := time.Now()
	res = Result{Instance: spec.Name}
	defer func() {
		res.Duration = time.Since(start)
	}()

	logger := c.logger.With(zap.String("instance", spec.Name))

	if c.strict {
		res.Phase = PhaseValidate
		if err := spec.Validate(); err != nil {
			res.Err = fmt.Errorf("%w: %s: %w", ErrLaunchFailed, spec.Name, err)
			logger.Error("instance failed validation", zap.Error(err))
			return res
		}
	}

	res.Phase = PhasePurge
	outcome, err := c.vm.Delete(ctx, spec.Name)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrPurgeFailed, spec.Name, err)
		logger.Error("purge failed, skipping launch", zap.Error(err))
		return res
	}
	res.Purge = outcome
	logger.Info("purged", zap.Stringer("outcome", outcome))

	res.Phase = PhaseSynthesize
	doc, err := cloudinit.Synthesize(g, spec)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrLaunchFailed, spec.Name, err)
		logger.Error("failed to synthesize cloud-init", zap.Error(err))
		return res
	}

	dir, err := os.MkdirTemp(c.tempDir, "mpdeploy-"+spec.Name+"-")
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: failed to create temp dir: %w", ErrLaunchFailed, spec.Name, err)
		logger.Error("failed to create temp dir", zap.Error(err))
		return res
	}
	defer c.cleanup(logger, dir)

	path := filepath.Join(dir, doc.FileName)
	if err := os.WriteFile(path, doc.Content, 0o600); err != nil {
		res.Err = fmt.Errorf("%w: %s: failed to write cloud-init: %w", ErrLaunchFailed, spec.Name, err)
		logger.Error("failed to write cloud-init", zap.Error(err))
		return res
	}

	res.Phase = PhaseLaunch
	opts, err := c.launchOptions(g, att, spec, path)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrLaunchFailed, spec.Name, err)
		return res
	}

	launchCtx, cancel := context.WithTimeout(ctx, opts.Timeout+c.launchGrace)
	defer cancel()

	logger.Info("launching", zap.String("network", att.Arg()), zap.Duration("timeout", opts.Timeout))
	if err := c.vm.Launch(launchCtx, opts); err != nil {
		if ctxErr := launchCtx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		res.Err = fmt.Errorf("%w: %s: %w", ErrLaunchFailed, spec.Name, err)
		logger.Error("launch failed", zap.Error(err))
		return res
	}

	res.Phase = PhaseDone
	logger.Info("launched")
	return res
}

func (c *Controller) launchOptions(g *config.GlobalConfig, att network.Attachment, spec config.InstanceSpec, cloudInitPath string) (multipass.LaunchOptions, error) {
	var mac string
	if g.PinMAC {
		var err error
		if mac, err = naming.MACFromIP(spec.IP); err != nil {
			return multipass.LaunchOptions{}, err
		}
	}

	return multipass.LaunchOptions{
		Name:          spec.Name,
		Image:         g.Image,
		CPUs:          g.CPUs,
		Memory:        g.Memory,
		Disk:          g.Disk,
		CloudInitFile: cloudInitPath,
		Networks:      []multipass.NetworkAttachment{att.NetworkAttachment(mac)},
		Timeout:       launchTimeout(g),
	}, nil
}

// launchTimeout falls back to the default for configs that were never
// normalized.
func launchTimeout(g *config.GlobalConfig) time.Duration {
	if g.LaunchTimeout > 0 {
		return g.LaunchTimeout
	}
	return config.DefaultLaunchTimeout
}

// cleanup removes the per-instance directory. Failures are logged, never
// returned.
func (c *Controller) cleanup(logger *zap.Logger, dir string) {
	if err := c.removeAll(dir); err != nil {
		logger.Warn("cleanup failed", zap.String("path", dir), zap.Error(err))
		return
	}
	logger.Debug("removed cloud-init temp dir", zap.String("path", dir))
}

func (c *Controller) progress(res Result) {
	if res.Err != nil {
		fmt.Fprintf(c.out, "✗ %s: %v\n", res.Instance, res.Err)
		return
	}
	fmt.Fprintf(c.out, "✓ %s launched (%s)\n", res.Instance, res.Duration.Round(time.Second))
}
