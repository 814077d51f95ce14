package fleet

import (
	"context"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// VMManager is the subset of the multipass client the controller needs.
//
// In production, this is satisfied by *multipass.Client.
// In tests, this is satisfied by mock implementations.
type VMManager interface {
	// Delete purges an instance. AlreadyAbsent is a successful outcome.
	Delete(ctx context.Context, name string) (multipass.DeleteOutcome, error)

	// Launch creates and boots an instance, blocking until it is up or fails.
	Launch(ctx context.Context, opts multipass.LaunchOptions) error

	// List returns every instance known to the VM manager.
	List(ctx context.Context) ([]multipass.Instance, error)
}
