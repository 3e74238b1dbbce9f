// Package manager defines the public surface of the governor model: the
// per-kind governor interfaces, their listener contracts, the immutable GATT
// snapshots, and the Manager collaborator that supplies native handles and
// descendant coordination.
//
// A governor owns at most one native handle at a time and oscillates between
// NOT_READY and READY as the underlying entity appears and disappears.
// Maintain drives acquisition and reconciliation; Reset tears the handle
// down. Neither ever returns an error: hook and transport failures are
// absorbed at the governor boundary, logged, and answered with a forced
// reset. The only error visible on the pull API is a NotReadyError from
// state accessors while no handle is held.
package manager

import (
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/transport"
)

// Governor is the common surface of every entity governor.
type Governor interface {
	fmt.Stringer

	// Address returns the identity of the governed entity.
	Address() bluetooth.Address

	// Ready reports whether a native handle is currently held.
	Ready() bool

	// LastActivity returns the time of the last successful maintenance pass
	// or inbound hardware notification. Zero until the first one.
	LastActivity() time.Time

	// Maintain runs one acquire/initialize/update cycle. It is mutually
	// exclusive with Reset on the same governor, never panics, and never
	// reports an error: failures trigger an internal reset.
	Maintain()

	// Reset tears down the current acquisition, if any. The native handle
	// is disposed unconditionally, even when teardown fails.
	Reset()

	AddGovernorListener(listener GovernorListener)
	RemoveGovernorListener(listener GovernorListener)
}

// DeviceGovernor governs a remote Bluetooth device: connection and block
// reconciliation, timeout-based liveness, and the service resolution cascade
// toward descendant characteristic governors.
type DeviceGovernor interface {
	Governor

	BluetoothClass() (uint32, error)
	BLEEnabled() (bool, error)
	Name() (string, error)
	Alias() (string, error)
	SetAlias(alias string) error

	// DisplayName returns the alias when set, otherwise the device name.
	DisplayName() (string, error)

	Connected() (bool, error)
	Blocked() (bool, error)
	RSSI() (int16, error)

	// ConnectionControl is the desired connection state; Maintain works the
	// transport toward it.
	ConnectionControl() bool
	SetConnectionControl(connected bool)

	// BlockedControl is the desired blocked state; while it is set the
	// governor performs no connection reconciliation.
	BlockedControl() bool
	SetBlockedControl(blocked bool)

	// Online is the timeout-derived liveness signal: true while the time
	// since LastActivity stays below OnlineTimeout. It is distinct from
	// wire-level connection state and requires no handle.
	Online() bool
	OnlineTimeout() time.Duration
	SetOnlineTimeout(timeout time.Duration)

	// ServicesToCharacteristics maps each resolved service address to the
	// governors of its characteristics, preserving transport order.
	ServicesToCharacteristics() (*orderedmap.OrderedMap[bluetooth.Address, []CharacteristicGovernor], error)

	// CharacteristicAddresses flattens the resolved service tree into
	// characteristic addresses.
	CharacteristicAddresses() ([]bluetooth.Address, error)

	CharacteristicGovernors() ([]CharacteristicGovernor, error)

	AddDeviceListener(listener DeviceListener)
	RemoveDeviceListener(listener DeviceListener)
	AddGattListener(listener GattListener)
	RemoveGattListener(listener GattListener)
}

// AdapterGovernor governs a local Bluetooth adapter, reconciling its powered
// state.
type AdapterGovernor interface {
	Governor

	Name() (string, error)
	Alias() (string, error)
	SetAlias(alias string) error
	DisplayName() (string, error)

	Powered() (bool, error)
	Discovering() (bool, error)

	PoweredControl() bool
	SetPoweredControl(powered bool)

	// DeviceGovernors lists the governed devices under this adapter.
	DeviceGovernors() []DeviceGovernor

	AddAdapterListener(listener AdapterListener)
	RemoveAdapterListener(listener AdapterListener)
}

// CharacteristicGovernor governs a GATT characteristic and bridges its value
// notifications.
type CharacteristicGovernor interface {
	Governor

	Flags() ([]string, error)
	Readable() (bool, error)
	Writable() (bool, error)
	Notifiable() (bool, error)

	Read() ([]byte, error)
	Write(data []byte) error

	// NextValue pops the oldest captured notification value; DrainValues
	// pops them all, oldest first. The capture buffer is bounded and drops
	// oldest records under pressure, so poll-style consumers see the most
	// recent window rather than blocking the notification path.
	NextValue() ([]byte, bool)
	DrainValues() [][]byte

	AddValueListener(listener ValueListener)
	RemoveValueListener(listener ValueListener)
}

// Manager is the collaborator injected into every governor. It supplies
// native handles, adapter governor lookup, and descendant coordination. The
// shipped implementation is internal/registry.Registry; tests provide mocks.
type Manager interface {
	// Native handle lookup; false means the entity is currently
	// unavailable and the asking governor stays NOT_READY.
	NativeAdapter(addr bluetooth.Address) (transport.Adapter, bool)
	NativeDevice(addr bluetooth.Address) (transport.Device, bool)
	NativeCharacteristic(addr bluetooth.Address) (transport.Characteristic, bool)

	// AdapterGovernor resolves the governor of the adapter owning addr,
	// creating it on first reference.
	AdapterGovernor(addr bluetooth.Address) (AdapterGovernor, bool)

	// GovernorsFor resolves governors for the given addresses, creating
	// them on first reference. Addresses that cannot be governed are
	// skipped.
	GovernorsFor(addrs []bluetooth.Address) []Governor

	// DeviceGovernors lists governed devices under the given adapter
	// address.
	DeviceGovernors(addr bluetooth.Address) []DeviceGovernor

	// RefreshDescendants schedules maintenance for every governed
	// descendant of addr without blocking the caller.
	RefreshDescendants(addr bluetooth.Address)

	// ResetDescendants force-resets every governed descendant of addr
	// synchronously.
	ResetDescendants(addr bluetooth.Address)
}
