package multipass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
)

// DefaultBinary is the executable looked up on PATH.
const DefaultBinary = "multipass"

const notFoundMarker = "does not exist"

// Client wraps the multipass CLI.
type Client struct {
	runner execcontext.Runner
	binary string
	logger *zap.Logger
}

// NewClient returns a Client that runs commands through runner.
func NewClient(runner execcontext.Runner, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		runner: runner,
		binary: DefaultBinary,
		logger: logger,
	}
}

// CheckInstalled verifies the multipass binary is reachable and returns its
// version.
func (c *Client) CheckInstalled(ctx context.Context) (string, error) {
	if _, err := c.runner.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolingAbsent, err)
	}
	return c.Version(ctx)
}

// Version returns the multipass client version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "version")
	if err != nil {
		return "", err
	}
	return parseVersion(string(out.Stdout))
}

// Delete purges the named instance. A missing instance is reported as
// AlreadyAbsent, not as an error.
func (c *Client) Delete(ctx context.Context, name string) (DeleteOutcome, error) {
	out, err := c.run(ctx, "delete", "--purge", name)
	if err == nil {
		c.logger.Debug("purged instance", zap.String("instance", name))
		return Deleted, nil
	}

	var exitErr *execcontext.ExitError
	if errors.As(err, &exitErr) && strings.Contains(out.Combined(), notFoundMarker) {
		c.logger.Debug("instance was already absent", zap.String("instance", name))
		return AlreadyAbsent, nil
	}

	return Deleted, fmt.Errorf("failed to delete instance %s: %w", name, err)
}

// Launch creates and boots an instance. It blocks until multipass returns or
// ctx is done.
func (c *Client) Launch(ctx context.Context, opts LaunchOptions) error {
	args, err := LaunchArgs(opts)
	if err != nil {
		return err
	}

	c.logger.Debug("launching instance",
		zap.String("instance", opts.Name),
		zap.Strings("args", args),
	)

	if _, err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to launch instance %s: %w", opts.Name, err)
	}
	return nil
}

// LaunchArgs returns the multipass arguments for opts.
func LaunchArgs(opts LaunchOptions) ([]string, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if opts.CloudInitFile == "" {
		return nil, fmt.Errorf("instance %s: cloud-init file is required", opts.Name)
	}

	args := []string{"launch", "--name", opts.Name}
	if opts.Memory != "" {
		args = append(args, "--memory", opts.Memory)
	}
	if opts.CPUs > 0 {
		args = append(args, "--cpus", strconv.Itoa(opts.CPUs))
	}
	if opts.Disk != "" {
		args = append(args, "--disk", opts.Disk)
	}
	for _, n := range opts.Networks {
		args = append(args, "--network", n.Arg())
	}
	args = append(args, "--cloud-init", opts.CloudInitFile)
	if opts.Timeout > 0 {
		secs := int(math.Ceil(opts.Timeout.Seconds()))
		args = append(args, "--timeout", strconv.Itoa(secs))
	}
	if opts.Image != "" {
		args = append(args, opts.Image)
	}

	return args, nil
}

// List returns all instances known to multipass.
func (c *Client) List(ctx context.Context) ([]Instance, error) {
	out, err := c.run(ctx, "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	var resp struct {
		List []Instance `json:"list"`
	}
	if err := json.Unmarshal(out.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse multipass list output: %w", err)
	}

	return resp.List, nil
}

// Networks returns the host networks multipass can bridge to.
func (c *Client) Networks(ctx context.Context) ([]Network, error) {
	out, err := c.run(ctx, "networks", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	var resp struct {
		List []Network `json:"list"`
	}
	if err := json.Unmarshal(out.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse multipass networks output: %w", err)
	}

	return resp.List, nil
}

func (c *Client) run(ctx context.Context, args ...string) (execcontext.Output, error) {
	out, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return out, fmt.Errorf("%w: %w", ErrToolingAbsent, err)
	}
	return out, err
}

// parseVersion extracts the client version from "multipass version" output:
//
//	multipass   1.14.0
//	multipassd  1.14.0
func parseVersion(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "multipass" {
			return fields[1], nil
		}
	}
	return "", fmt.Errorf("unexpected multipass version output: %q", strings.TrimSpace(out))
}
