// Package network resolves the host switch that instances are bridged onto,
// creating it when the host supports that.
package network

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

var (
	ErrSwitchNameRequired = errors.New("switch name is required")
	// ErrSwitchCreationFailed is fatal to the run: no instance is touched.
	ErrSwitchCreationFailed = errors.New("failed to create switch")
	ErrNoAdapters           = errors.New("no physical network adapters found")
)

// Kind identifies the backend that produced an Attachment.
type Kind string

const (
	KindHyperV  Kind = "hyperv"
	KindLibvirt Kind = "libvirt"
	KindBridged Kind = "bridged"
)

// ManualMode asks multipass to leave guest addressing of the interface to the
// guest's own netplan.
const ManualMode = "manual"

// Attachment is the resolved switch every instance is attached to. It is
// created once per run and shared read-only.
type Attachment struct {
	Kind    Kind
	Switch  string
	// Network is the name multipass knows the switch by, when that differs
	// from Switch (the host bridge behind a libvirt network).
	Network string
	Mode    string
	Created bool // the switch was created during this run
}

// Target returns the network name passed to multipass.
func (a Attachment) Target() string {
	if a.Network != "" {
		return a.Network
	}
	return a.Switch
}

// NetworkAttachment returns the multipass --network descriptor, optionally
// pinned to mac.
func (a Attachment) NetworkAttachment(mac string) multipass.NetworkAttachment {
	return multipass.NetworkAttachment{
		Name: a.Target(),
		Mode: a.Mode,
		MAC:  mac,
	}
}

// Arg returns the --network argument for the attachment.
func (a Attachment) Arg() string {
	return a.NetworkAttachment("").Arg()
}

// Resolver turns a configured switch name into an Attachment.
type Resolver interface {
	Resolve(ctx context.Context, switchName string) (Attachment, error)
}

// Adapter is a physical host interface a switch can be bound to.
type Adapter struct {
	Name        string
	Description string
	MAC         string
}

// SwitchHost is the host subsystem that owns switches.
type SwitchHost interface {
	SwitchExists(ctx context.Context, name string) (bool, error)
	ListAdapters(ctx context.Context) ([]Adapter, error)
	CreateSwitch(ctx context.Context, name string, adapter Adapter) error
}

// NetworkNamer is implemented by hosts whose switches are exposed to
// multipass under another name.
type NetworkNamer interface {
	NetworkName(ctx context.Context, switchName string) (string, error)
}

// AdapterPrompter asks the operator which adapter a new switch should use.
type AdapterPrompter interface {
	ChooseAdapter(ctx context.Context, switchName string, adapters []Adapter) (Adapter, error)
}

// HostResolver resolves switches against a SwitchHost, creating missing ones
// after asking the operator for an adapter.
type HostResolver struct {
	kind     Kind
	host     SwitchHost
	prompter AdapterPrompter
	logger   *zap.Logger
}

// NewHostResolver returns a resolver of the given kind backed by host.
func NewHostResolver(kind Kind, host SwitchHost, prompter AdapterPrompter, logger *zap.Logger) *HostResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostResolver{
		kind:     kind,
		host:     host,
		prompter: prompter,
		logger:   logger,
	}
}

// Resolve implements Resolver. An existing switch is returned without any
// mutation, so resolving twice never creates twice.
func (r *HostResolver) Resolve(ctx context.Context, switchName string) (Attachment, error) {
	if switchName == "" {
		return Attachment{}, ErrSwitchNameRequired
	}

	logger := r.logger.With(zap.String("switch", switchName), zap.String("backend", string(r.kind)))

	exists, err := r.host.SwitchExists(ctx, switchName)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to check switch %s: %w", switchName, err)
	}

	attachment := Attachment{Kind: r.kind, Switch: switchName, Mode: ManualMode}
	if exists {
		if attachment.Network, err = r.networkName(ctx, switchName); err != nil {
			return Attachment{}, fmt.Errorf("failed to resolve switch %s: %w", switchName, err)
		}
		logger.Info("switch found", zap.String("network", attachment.Target()))
		return attachment, nil
	}

	logger.Warn("switch not found, creating it")

	adapters, err := r.host.ListAdapters(ctx)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w %s: %w", ErrSwitchCreationFailed, switchName, err)
	}
	if len(adapters) == 0 {
		return Attachment{}, fmt.Errorf("%w %s: %w", ErrSwitchCreationFailed, switchName, ErrNoAdapters)
	}

	if r.prompter == nil {
		return Attachment{}, fmt.Errorf("%w %s: no adapter prompter configured", ErrSwitchCreationFailed, switchName)
	}
	adapter, err := r.prompter.ChooseAdapter(ctx, switchName, adapters)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w %s: %w", ErrSwitchCreationFailed, switchName, err)
	}

	if err := r.host.CreateSwitch(ctx, switchName, adapter); err != nil {
		return Attachment{}, fmt.Errorf("%w %s on adapter %s: %w", ErrSwitchCreationFailed, switchName, adapter.Name, err)
	}

	if attachment.Network, err = r.networkName(ctx, switchName); err != nil {
		return Attachment{}, fmt.Errorf("%w %s: %w", ErrSwitchCreationFailed, switchName, err)
	}

	logger.Info("switch created", zap.String("adapter", adapter.Name), zap.String("network", attachment.Target()))
	attachment.Created = true
	return attachment, nil
}

func (r *HostResolver) networkName(ctx context.Context, switchName string) (string, error) {
	namer, ok := r.host.(NetworkNamer)
	if !ok {
		return "", nil
	}
	return namer.NetworkName(ctx, switchName)
}

// BridgedResolver is used where the operator bridges the host interface by
// hand. It neither queries nor mutates the host.
type BridgedResolver struct {
	logger *zap.Logger
}

// NewBridgedResolver returns a BridgedResolver.
func NewBridgedResolver(logger *zap.Logger) *BridgedResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgedResolver{logger: logger}
}

// Resolve implements Resolver.
func (r *BridgedResolver) Resolve(_ context.Context, switchName string) (Attachment, error) {
	if switchName == "" {
		return Attachment{}, ErrSwitchNameRequired
	}
	r.logger.Debug("using manually bridged interface", zap.String("switch", switchName))
	return Attachment{Kind: KindBridged, Switch: switchName, Mode: ManualMode}, nil
}
