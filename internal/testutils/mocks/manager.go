// Package mocks holds testify mocks for the public governor contracts.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// MockManager mocks the manager.Manager collaborator.
type MockManager struct {
	mock.Mock
}

var _ manager.Manager = (*MockManager)(nil)

func (m *MockManager) NativeAdapter(addr bluetooth.Address) (transport.Adapter, bool) {
	args := m.Called(addr)
	a, _ := args.Get(0).(transport.Adapter)
	return a, args.Bool(1)
}

func (m *MockManager) NativeDevice(addr bluetooth.Address) (transport.Device, bool) {
	args := m.Called(addr)
	d, _ := args.Get(0).(transport.Device)
	return d, args.Bool(1)
}

func (m *MockManager) NativeCharacteristic(addr bluetooth.Address) (transport.Characteristic, bool) {
	args := m.Called(addr)
	c, _ := args.Get(0).(transport.Characteristic)
	return c, args.Bool(1)
}

func (m *MockManager) AdapterGovernor(addr bluetooth.Address) (manager.AdapterGovernor, bool) {
	args := m.Called(addr)
	g, _ := args.Get(0).(manager.AdapterGovernor)
	return g, args.Bool(1)
}

func (m *MockManager) GovernorsFor(addrs []bluetooth.Address) []manager.Governor {
	args := m.Called(addrs)
	gs, _ := args.Get(0).([]manager.Governor)
	return gs
}

func (m *MockManager) DeviceGovernors(addr bluetooth.Address) []manager.DeviceGovernor {
	args := m.Called(addr)
	gs, _ := args.Get(0).([]manager.DeviceGovernor)
	return gs
}

func (m *MockManager) RefreshDescendants(addr bluetooth.Address) {
	m.Called(addr)
}

func (m *MockManager) ResetDescendants(addr bluetooth.Address) {
	m.Called(addr)
}
