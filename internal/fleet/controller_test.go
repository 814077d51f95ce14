package fleet

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
	"github.com/langburd/ubuntu-multipass-deployment/internal/network"
)

func testGlobal() *config.GlobalConfig {
	cfg := &config.Config{
		GlobalConfig: config.GlobalConfig{
			GitUsername:       "octocat",
			WindowsSwitchName: "External Switch",
		},
	}
	cfg.Normalize("")
	return &cfg.GlobalConfig
}

func testAttachment() network.Attachment {
	return network.Attachment{Kind: network.KindHyperV, Switch: "External Switch", Mode: network.ManualMode}
}

func spec(name, ip string) config.InstanceSpec {
	return config.InstanceSpec{Name: name, IP: ip, Gateway: "192.168.8.1", DNS: []string{"8.8.8.8", "8.8.4.4"}}
}

func newTestController(t *testing.T, vm VMManager, opts Options) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	opts.TempDir = dir
	return NewController(vm, opts), dir
}

func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary cloud-init files were not removed")
}

func TestProvision_Success(t *testing.T) {
	vm := newMockVMManager()
	c, dir := newTestController(t, vm, Options{})

	err := c.Provision(context.Background(), testGlobal(), testAttachment(), spec("pihole1", "192.168.8.53/23"))
	require.NoError(t, err)

	assert.Equal(t, []string{"delete pihole1", "launch pihole1"}, vm.calls)
	require.Len(t, vm.launches, 1)

	obs := vm.launches[0]
	require.NoError(t, obs.readErr, "cloud-init file must exist during launch")
	assert.Equal(t, os.FileMode(0o600), obs.mode)
	assert.True(t, obs.deadline, "launch must be bounded by a deadline")
	assert.True(t, strings.HasPrefix(string(obs.content), "#cloud-config\n"))
	assert.Contains(t, string(obs.content), "hostname: pihole1")
	assert.True(t, strings.HasSuffix(obs.opts.CloudInitFile, "pihole1-cloud-init.yaml"))

	assert.Equal(t, "pihole1", obs.opts.Name)
	assert.Equal(t, "1G", obs.opts.Memory)
	assert.Equal(t, config.DefaultLaunchTimeout, obs.opts.Timeout)
	assert.Equal(t, []multipass.NetworkAttachment{{Name: "External Switch", Mode: "manual"}}, obs.opts.Networks)

	assertNoLeftovers(t, dir)
}

func TestProvision_CleanupOnLaunchFailure(t *testing.T) {
	vm := newMockVMManager()
	vm.launchFunc = func(context.Context, multipass.LaunchOptions) error {
		return errors.New("launch failed: timed out waiting for response")
	}
	c, dir := newTestController(t, vm, Options{})

	err := c.Provision(context.Background(), testGlobal(), testAttachment(), spec("pihole1", "192.168.8.53/23"))
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "pihole1")

	require.Len(t, vm.launches, 1)
	require.NoError(t, vm.launches[0].readErr)
	assertNoLeftovers(t, dir)
}

func TestProvision_PurgeOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		deleteFunc func(string) (multipass.DeleteOutcome, error)
		wantErr    error
		wantCalls  []string
		wantPurge  multipass.DeleteOutcome
	}{
		{
			name:       "existing instance",
			deleteFunc: func(string) (multipass.DeleteOutcome, error) { return multipass.Deleted, nil },
			wantCalls:  []string{"delete pihole1", "launch pihole1"},
			wantPurge:  multipass.Deleted,
		},
		{
			name:       "absent instance",
			deleteFunc: func(string) (multipass.DeleteOutcome, error) { return multipass.AlreadyAbsent, nil },
			wantCalls:  []string{"delete pihole1", "launch pihole1"},
			wantPurge:  multipass.AlreadyAbsent,
		},
		{
			name: "permission denied",
			deleteFunc: func(string) (multipass.DeleteOutcome, error) {
				return multipass.Deleted, errors.New("delete failed: permission denied")
			},
			wantErr:   ErrPurgeFailed,
			wantCalls: []string{"delete pihole1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newMockVMManager()
			vm.deleteFunc = tt.deleteFunc
			c, dir := newTestController(t, vm, Options{})

			results := c.Run(context.Background(), testGlobal(), testAttachment(), []config.InstanceSpec{spec("pihole1", "192.168.8.53/23")})
			require.Len(t, results, 1)

			assert.Equal(t, tt.wantCalls, vm.calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, results[0].Err, tt.wantErr)
				assert.Equal(t, PhasePurge, results[0].Phase)
				assert.Contains(t, results[0].Err.Error(), "permission denied")
			} else {
				require.NoError(t, results[0].Err)
				assert.Equal(t, PhaseDone, results[0].Phase)
				assert.Equal(t, tt.wantPurge, results[0].Purge)
			}
			assertNoLeftovers(t, dir)
		})
	}
}

func TestRun_StrictOrder(t *testing.T) {
	vm := newMockVMManager()
	c, _ := newTestController(t, vm, Options{})

	instances := []config.InstanceSpec{
		spec("charlie", "10.0.0.3/24"),
		spec("alpha", "10.0.0.1/24"),
		spec("bravo", "10.0.0.2/24"),
	}
	results := c.Run(context.Background(), testGlobal(), testAttachment(), instances)

	require.Len(t, results, 3)
	assert.Equal(t, []string{
		"delete charlie", "launch charlie",
		"delete alpha", "launch alpha",
		"delete bravo", "launch bravo",
	}, vm.calls)
	for i, r := range results {
		assert.Equal(t, instances[i].Name, r.Instance)
		assert.True(t, r.OK())
	}
}

func TestRun_FailureDoesNotStopFleet(t *testing.T) {
	vm := newMockVMManager()
	vm.launchFunc = func(_ context.Context, opts multipass.LaunchOptions) error {
		if opts.Name == "pihole1" {
			return errors.New("launch failed: image not found")
		}
		return nil
	}
	c, dir := newTestController(t, vm, Options{})

	instances := []config.InstanceSpec{
		spec("pihole1", "192.168.8.53/23"),
		spec("pihole2", "192.168.8.54/23"),
	}
	results := c.Run(context.Background(), testGlobal(), testAttachment(), instances)

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, ErrLaunchFailed)
	assert.NoError(t, results[1].Err)
	assert.Len(t, Failed(results), 1)
	assert.ErrorIs(t, Err(results), ErrLaunchFailed)

	require.Len(t, vm.launches, 2)
	first, second := string(vm.launches[0].content), string(vm.launches[1].content)
	assert.Contains(t, first, "192.168.8.53/23")
	assert.NotContains(t, first, "192.168.8.54/23")
	assert.Contains(t, second, "hostname: pihole2")
	assert.Contains(t, second, "192.168.8.54/23")
	assert.NotContains(t, second, "192.168.8.53/23")
	assert.NotEqual(t, vm.launches[0].opts.CloudInitFile, vm.launches[1].opts.CloudInitFile)

	assertNoLeftovers(t, dir)
}

func TestRun_FailFast(t *testing.T) {
	vm := newMockVMManager()
	vm.launchFunc = func(context.Context, multipass.LaunchOptions) error {
		return errors.New("boom")
	}
	c, _ := newTestController(t, vm, Options{FailFast: true})

	results := c.Run(context.Background(), testGlobal(), testAttachment(), []config.InstanceSpec{
		spec("a", "10.0.0.1/24"),
		spec("b", "10.0.0.2/24"),
	})

	require.Len(t, results, 1)
	assert.Equal(t, []string{"delete a", "launch a"}, vm.calls)
}

func TestRun_CancelledDuringLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vm := newMockVMManager()
	vm.launchFunc = func(ctx context.Context, _ multipass.LaunchOptions) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	c, dir := newTestController(t, vm, Options{})

	results := c.Run(ctx, testGlobal(), testAttachment(), []config.InstanceSpec{
		spec("a", "10.0.0.1/24"),
		spec("b", "10.0.0.2/24"),
	})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrLaunchFailed)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Equal(t, []string{"delete a", "launch a"}, vm.calls)
	assertNoLeftovers(t, dir)
}

func TestProvision_LaunchDeadline(t *testing.T) {
	g := testGlobal()
	g.LaunchTimeout = 10 * time.Millisecond

	vm := newMockVMManager()
	vm.launchFunc = func(ctx context.Context, _ multipass.LaunchOptions) error {
		<-ctx.Done()
		return errors.New("signal: killed")
	}
	c, dir := newTestController(t, vm, Options{LaunchGrace: 10 * time.Millisecond})

	err := c.Provision(context.Background(), g, testAttachment(), spec("slow", "10.0.0.9/24"))
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertNoLeftovers(t, dir)
}

func TestProvision_UnnormalizedLaunchTimeout(t *testing.T) {
	g := &config.GlobalConfig{GitUsername: "octocat", WindowsSwitchName: "External Switch"}

	vm := newMockVMManager()
	c, _ := newTestController(t, vm, Options{})

	require.NoError(t, c.Provision(context.Background(), g, testAttachment(), spec("pihole1", "192.168.8.53/23")))
	require.Len(t, vm.launches, 1)

	obs := vm.launches[0]
	assert.Equal(t, config.DefaultLaunchTimeout, obs.opts.Timeout)
	require.True(t, obs.deadline)
	assert.Greater(t, obs.timeLeft, config.DefaultLaunchTimeout)
}

func TestProvision_Strict(t *testing.T) {
	vm := newMockVMManager()
	c, _ := newTestController(t, vm, Options{Strict: true})

	bad := config.InstanceSpec{Name: "bad", IP: "192.168.8.300/23", Gateway: "192.168.8.1", DNS: []string{"8.8.8.8"}}
	results := c.Run(context.Background(), testGlobal(), testAttachment(), []config.InstanceSpec{bad})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrLaunchFailed)
	assert.Equal(t, PhaseValidate, results[0].Phase)
	assert.Empty(t, vm.calls)
}

func TestProvision_SynthesisFailure(t *testing.T) {
	g := testGlobal()
	g.PinMAC = true

	vm := newMockVMManager()
	c, dir := newTestController(t, vm, Options{})

	res := c.provision(context.Background(), g, testAttachment(), config.InstanceSpec{Name: "x", IP: "bogus", Gateway: "10.0.0.1", DNS: []string{"1.1.1.1"}})
	require.ErrorIs(t, res.Err, ErrLaunchFailed)
	assert.Equal(t, PhaseSynthesize, res.Phase)
	assert.Equal(t, []string{"delete x"}, vm.calls)
	assertNoLeftovers(t, dir)
}

func TestProvision_PinMAC(t *testing.T) {
	g := testGlobal()
	g.PinMAC = true

	vm := newMockVMManager()
	c, _ := newTestController(t, vm, Options{})

	require.NoError(t, c.Provision(context.Background(), g, testAttachment(), spec("pihole1", "192.168.8.53/23")))
	require.Len(t, vm.launches, 1)
	assert.Equal(t, "name=External Switch,mode=manual,mac=be:ef:c0:a8:08:35", vm.launches[0].opts.Networks[0].Arg())
}

func TestProvision_CleanupFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	vm := newMockVMManager()
	c, _ := newTestController(t, vm, Options{Logger: zap.New(core)})

	var removed []string
	c.removeAll = func(path string) error {
		removed = append(removed, path)
		_ = os.RemoveAll(path)
		return errors.New("device busy")
	}

	err := c.Provision(context.Background(), testGlobal(), testAttachment(), spec("pihole1", "192.168.8.53/23"))
	require.NoError(t, err, "cleanup failure must not fail the instance")
	require.Len(t, removed, 1)

	entries := logs.FilterMessage("cleanup failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pihole1", entries[0].ContextMap()["instance"])
}

func TestRun_ProgressOutput(t *testing.T) {
	vm := newMockVMManager()
	vm.launchFunc = func(_ context.Context, opts multipass.LaunchOptions) error {
		if opts.Name == "b" {
			return errors.New("boom")
		}
		return nil
	}
	var out bytes.Buffer
	c, _ := newTestController(t, vm, Options{Out: &out})

	c.Run(context.Background(), testGlobal(), testAttachment(), []config.InstanceSpec{
		spec("a", "10.0.0.1/24"),
		spec("b", "10.0.0.2/24"),
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "✓ a launched"))
	assert.True(t, strings.HasPrefix(lines[1], "✗ b: launch failed: b: boom"))
}

func TestReport(t *testing.T) {
	vm := newMockVMManager()
	vm.listFunc = func() ([]multipass.Instance, error) {
		return []multipass.Instance{{Name: "pihole1", State: "Running", IPv4: []string{"192.168.8.53"}}}, nil
	}
	c, _ := newTestController(t, vm, Options{})

	got, err := c.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pihole1", got[0].Name)

	vm.listFunc = func() ([]multipass.Instance, error) { return nil, errors.New("daemon unreachable") }
	_, err = c.Report(context.Background())
	assert.ErrorContains(t, err, "failed to build fleet report")
}

func TestNewController_RunID(t *testing.T) {
	c := NewController(newMockVMManager(), Options{RunID: "fixed"})
	assert.Equal(t, "fixed", c.RunID())

	generated := NewController(newMockVMManager(), Options{})
	assert.Len(t, generated.RunID(), 36)
}
