package network

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
)

// Deps are the collaborators a resolver may need. Only the ones required by
// the selected backend have to be set.
type Deps struct {
	Runner   execcontext.Runner
	Libvirt  LibvirtAPI
	Prompter AdapterPrompter
	Logger   *zap.Logger
}

// BackendFor maps the configured backend and host OS to a concrete backend.
// Auto selects Hyper-V on Windows and manual bridging elsewhere.
func BackendFor(backend config.NetworkBackend, goos string) config.NetworkBackend {
	if backend != "" && backend != config.BackendAuto {
		return backend
	}
	if goos == "windows" {
		return config.BackendHyperV
	}
	return config.BackendBridged
}

// New selects the resolver variant once at startup.
func New(backend config.NetworkBackend, goos string, deps Deps) (Resolver, error) {
	switch b := BackendFor(backend, goos); b {
	case config.BackendHyperV:
		if deps.Runner == nil {
			return nil, fmt.Errorf("hyperv backend requires a command runner")
		}
		return NewHostResolver(KindHyperV, NewHyperVHost(deps.Runner), deps.Prompter, deps.Logger), nil
	case config.BackendLibvirt:
		if deps.Libvirt == nil {
			return nil, fmt.Errorf("libvirt backend requires a libvirt connection")
		}
		return NewHostResolver(KindLibvirt, NewLibvirtHost(deps.Libvirt), deps.Prompter, deps.Logger), nil
	case config.BackendBridged:
		return NewBridgedResolver(deps.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported network backend %q", b)
	}
}
