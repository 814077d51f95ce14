package fleet

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// launchObservation records what was on disk while Launch was running.
type launchObservation struct {
	opts     multipass.LaunchOptions
	content  []byte
	mode     os.FileMode
	readErr  error
	deadline bool
	timeLeft time.Duration
}

// mockVMManager is a mock implementation of the VMManager interface for testing.
type mockVMManager struct {
	mu sync.Mutex

	// Configurable behavior
	deleteFunc func(name string) (multipass.DeleteOutcome, error)
	launchFunc func(ctx context.Context, opts multipass.LaunchOptions) error
	listFunc   func() ([]multipass.Instance, error)

	// Call tracking, in order across all methods
	calls    []string
	launches []launchObservation
}

func newMockVMManager() *mockVMManager {
	return &mockVMManager{}
}

func (m *mockVMManager) Delete(_ context.Context, name string) (multipass.DeleteOutcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "delete "+name)
	m.mu.Unlock()

	if m.deleteFunc != nil {
		return m.deleteFunc(name)
	}
	return multipass.AlreadyAbsent, nil
}

func (m *mockVMManager) Launch(ctx context.Context, opts multipass.LaunchOptions) error {
	obs := launchObservation{opts: opts}
	obs.content, obs.readErr = os.ReadFile(opts.CloudInitFile)
	if info, err := os.Stat(opts.CloudInitFile); err == nil {
		obs.mode = info.Mode().Perm()
	}
	var dl time.Time
	if dl, obs.deadline = ctx.Deadline(); obs.deadline {
		obs.timeLeft = time.Until(dl)
	}

	m.mu.Lock()
	m.calls = append(m.calls, "launch "+opts.Name)
	m.launches = append(m.launches, obs)
	m.mu.Unlock()

	if m.launchFunc != nil {
		return m.launchFunc(ctx, opts)
	}
	return nil
}

func (m *mockVMManager) List(context.Context) ([]multipass.Instance, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "list")
	m.mu.Unlock()

	if m.listFunc != nil {
		return m.listFunc()
	}
	return nil, nil
}
