package testutils

import (
	"sync"
	"time"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// FakeManager is a stateful manager.Manager for governor tests. Native
// lookups delegate to a FakeSource; governor lookups answer from an explicit
// pre-registered set; descendant coordination is recorded instead of acted
// on, so tests can assert cascade ordering without a live registry.
type FakeManager struct {
	mu        sync.Mutex
	source    *FakeSource
	adapters  map[bluetooth.Address]manager.AdapterGovernor
	governors map[bluetooth.Address]manager.Governor
	refreshed []bluetooth.Address
	resets    []bluetooth.Address
}

var _ manager.Manager = (*FakeManager)(nil)

func NewFakeManager(source *FakeSource) *FakeManager {
	return &FakeManager{
		source:    source,
		adapters:  make(map[bluetooth.Address]manager.AdapterGovernor),
		governors: make(map[bluetooth.Address]manager.Governor),
	}
}

func (m *FakeManager) NativeAdapter(addr bluetooth.Address) (transport.Adapter, bool) {
	if m.source == nil {
		return nil, false
	}
	return m.source.Adapter(addr)
}

func (m *FakeManager) NativeDevice(addr bluetooth.Address) (transport.Device, bool) {
	if m.source == nil {
		return nil, false
	}
	return m.source.Device(addr)
}

func (m *FakeManager) NativeCharacteristic(addr bluetooth.Address) (transport.Characteristic, bool) {
	if m.source == nil {
		return nil, false
	}
	return m.source.Characteristic(addr)
}

func (m *FakeManager) AdapterGovernor(addr bluetooth.Address) (manager.AdapterGovernor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.adapters[addr.AdapterAddress()]
	return g, ok
}

// GovernorsFor answers only from the pre-registered set; unknown addresses
// are skipped, never created.
func (m *FakeManager) GovernorsFor(addrs []bluetooth.Address) []manager.Governor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]manager.Governor, 0, len(addrs))
	for _, addr := range addrs {
		if g, ok := m.governors[addr]; ok {
			out = append(out, g)
		}
	}
	return out
}

func (m *FakeManager) DeviceGovernors(addr bluetooth.Address) []manager.DeviceGovernor {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []manager.DeviceGovernor
	for govAddr, g := range m.governors {
		dg, ok := g.(manager.DeviceGovernor)
		if ok && govAddr.IsDescendantOf(addr) {
			out = append(out, dg)
		}
	}
	return out
}

func (m *FakeManager) RefreshDescendants(addr bluetooth.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, addr)
}

func (m *FakeManager) ResetDescendants(addr bluetooth.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, addr)
}

// SetAdapterGovernor registers the governor serving addr's adapter subtree.
func (m *FakeManager) SetAdapterGovernor(g manager.AdapterGovernor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[g.Address().AdapterAddress()] = g
}

// AddGovernor pre-registers a governor for GovernorsFor and DeviceGovernors
// lookups.
func (m *FakeManager) AddGovernor(g manager.Governor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.governors[g.Address()] = g
}

// RefreshedAddresses returns every RefreshDescendants call, in order.
func (m *FakeManager) RefreshedAddresses() []bluetooth.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bluetooth.Address(nil), m.refreshed...)
}

// ResetAddresses returns every ResetDescendants call, in order.
func (m *FakeManager) ResetAddresses() []bluetooth.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bluetooth.Address(nil), m.resets...)
}

// ClearRecorded forgets the recorded descendant coordination calls.
func (m *FakeManager) ClearRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = nil
	m.resets = nil
}

// FakeAdapterGovernor is a scriptable manager.AdapterGovernor: tests dial its
// readiness and powered answers directly instead of driving a transport.
type FakeAdapterGovernor struct {
	addr bluetooth.Address

	mu         sync.Mutex
	ready      bool
	powered    bool
	poweredErr error
	maintains  int
	resets     int
}

var _ manager.AdapterGovernor = (*FakeAdapterGovernor)(nil)

func NewFakeAdapterGovernor(addr string) *FakeAdapterGovernor {
	return &FakeAdapterGovernor{addr: bluetooth.MustParseAddress(addr)}
}

// SetReady scripts the Ready answer.
func (g *FakeAdapterGovernor) SetReady(ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = ready
}

// SetPowered scripts the Powered answer.
func (g *FakeAdapterGovernor) SetPowered(powered bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.powered = powered
}

// FailPowered makes Powered return err until called with nil.
func (g *FakeAdapterGovernor) FailPowered(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.poweredErr = err
}

func (g *FakeAdapterGovernor) String() string             { return "[Adapter] " + g.addr.String() }
func (g *FakeAdapterGovernor) Address() bluetooth.Address { return g.addr }

func (g *FakeAdapterGovernor) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *FakeAdapterGovernor) LastActivity() time.Time { return time.Time{} }

func (g *FakeAdapterGovernor) Maintain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maintains++
}

func (g *FakeAdapterGovernor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
}

func (g *FakeAdapterGovernor) MaintainCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maintains
}

func (g *FakeAdapterGovernor) ResetCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resets
}

func (g *FakeAdapterGovernor) AddGovernorListener(manager.GovernorListener)    {}
func (g *FakeAdapterGovernor) RemoveGovernorListener(manager.GovernorListener) {}

func (g *FakeAdapterGovernor) Name() (string, error)        { return "", nil }
func (g *FakeAdapterGovernor) Alias() (string, error)       { return "", nil }
func (g *FakeAdapterGovernor) SetAlias(string) error        { return nil }
func (g *FakeAdapterGovernor) DisplayName() (string, error) { return "", nil }

func (g *FakeAdapterGovernor) Discovering() (bool, error) { return false, nil }

func (g *FakeAdapterGovernor) PoweredControl() bool   { return true }
func (g *FakeAdapterGovernor) SetPoweredControl(bool) {}

func (g *FakeAdapterGovernor) DeviceGovernors() []manager.DeviceGovernor { return nil }

func (g *FakeAdapterGovernor) Powered() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.poweredErr != nil {
		return false, g.poweredErr
	}
	return g.powered, nil
}

func (g *FakeAdapterGovernor) AddAdapterListener(manager.AdapterListener)    {}
func (g *FakeAdapterGovernor) RemoveAdapterListener(manager.AdapterListener) {}
