package network

import (
	"context"

	"github.com/langburd/ubuntu-multipass-deployment/internal/execcontext"
	"github.com/langburd/ubuntu-multipass-deployment/internal/libvirt"
)

type mockSwitchHost struct {
	switchExistsFunc func(ctx context.Context, name string) (bool, error)
	listAdaptersFunc func(ctx context.Context) ([]Adapter, error)
	createSwitchFunc func(ctx context.Context, name string, adapter Adapter) error

	existsCalls []string
	listCalls   int
	createCalls []string
}

func (m *mockSwitchHost) SwitchExists(ctx context.Context, name string) (bool, error) {
	m.existsCalls = append(m.existsCalls, name)
	if m.switchExistsFunc != nil {
		return m.switchExistsFunc(ctx, name)
	}
	return false, nil
}

func (m *mockSwitchHost) ListAdapters(ctx context.Context) ([]Adapter, error) {
	m.listCalls++
	if m.listAdaptersFunc != nil {
		return m.listAdaptersFunc(ctx)
	}
	return nil, nil
}

func (m *mockSwitchHost) CreateSwitch(ctx context.Context, name string, adapter Adapter) error {
	m.createCalls = append(m.createCalls, name+"@"+adapter.Name)
	if m.createSwitchFunc != nil {
		return m.createSwitchFunc(ctx, name, adapter)
	}
	return nil
}

type mockPrompter struct {
	chooseFunc func(adapters []Adapter) (Adapter, error)
	calls      int
	offered    []string
}

func (m *mockPrompter) ChooseAdapter(_ context.Context, _ string, adapters []Adapter) (Adapter, error) {
	m.calls++
	for _, a := range adapters {
		m.offered = append(m.offered, a.Name)
	}
	if m.chooseFunc != nil {
		return m.chooseFunc(adapters)
	}
	return adapters[0], nil
}

type mockLibvirt struct {
	networks  map[string]string // name -> bridge
	ifaces    []libvirt.HostInterface
	lookupErr error
	createErr error
}

func (m *mockLibvirt) LookupNetwork(name string) (*libvirt.NetworkInfo, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	bridge, ok := m.networks[name]
	if !ok {
		return nil, libvirt.ErrNetworkNotFound
	}
	return &libvirt.NetworkInfo{Name: name, Bridge: bridge, Mode: "bridge"}, nil
}

func (m *mockLibvirt) ListInterfaces() ([]libvirt.HostInterface, error) {
	return m.ifaces, nil
}

func (m *mockLibvirt) CreateBridgeNetwork(name, bridge string) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.networks == nil {
		m.networks = map[string]string{}
	}
	m.networks[name] = bridge
	return nil
}

type runCall struct {
	name string
	args []string
}

type fakeRunner struct {
	runFunc func(name string, args []string) (execcontext.Output, error)
	calls   []runCall
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (execcontext.Output, error) {
	f.calls = append(f.calls, runCall{name: name, args: args})
	if f.runFunc != nil {
		return f.runFunc(name, args)
	}
	return execcontext.Output{}, nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return name, nil
}
