// Package transport defines the native-handle interfaces the governors drive.
//
// A transport binding (BlueZ, a vendor HCI stack, a test fixture) implements
// Source plus the per-kind object interfaces. Governors treat every call as
// synchronous and blocking; a failed call surfaces as an error from the
// governor hook that made it and triggers that governor's reset path. Handles
// are owned by exactly one governor between acquisition and Dispose.
package transport

import "github.com/srg/blegov/pkg/bluetooth"

// BoolCallback receives boolean state-change notifications.
type BoolCallback func(value bool)

// RSSICallback receives RSSI change notifications.
type RSSICallback func(rssi int16)

// ValueCallback receives characteristic value notifications.
type ValueCallback func(value []byte)

// Object is the surface shared by every native handle.
type Object interface {
	// Address returns the hierarchical identifier of the underlying entity.
	Address() bluetooth.Address

	// Dispose releases the native handle. Implementations must tolerate
	// repeated calls; governors invoke it exactly once per acquisition.
	Dispose()
}

// Adapter is the native handle of a Bluetooth adapter.
type Adapter interface {
	Object

	Name() (string, error)
	Alias() (string, error)
	SetAlias(alias string) error

	Powered() (bool, error)
	SetPowered(powered bool) error
	Discovering() (bool, error)

	EnablePoweredNotifications(cb BoolCallback) error
	DisablePoweredNotifications() error
	EnableDiscoveringNotifications(cb BoolCallback) error
	DisableDiscoveringNotifications() error
}

// Device is the native handle of a remote Bluetooth device.
type Device interface {
	Object

	Name() (string, error)
	Alias() (string, error)
	SetAlias(alias string) error

	// BLEEnabled reports whether the device advertises low-energy
	// capability. Classic-only devices are not connection-reconciled.
	BLEEnabled() (bool, error)
	BluetoothClass() (uint32, error)

	Connected() (bool, error)
	Connect() error
	Disconnect() error

	Blocked() (bool, error)
	SetBlocked(blocked bool) error

	RSSI() (int16, error)

	// Services returns the resolved GATT service tree. Empty until the
	// transport reports services resolved.
	Services() ([]Service, error)

	EnableConnectedNotifications(cb BoolCallback) error
	DisableConnectedNotifications() error
	EnableBlockedNotifications(cb BoolCallback) error
	DisableBlockedNotifications() error
	EnableServicesResolvedNotifications(cb BoolCallback) error
	DisableServicesResolvedNotifications() error
	EnableRSSINotifications(cb RSSICallback) error
	DisableRSSINotifications() error
}

// Service is a resolved GATT service under a device handle. It carries no
// lifecycle of its own; governors snapshot it into immutable value objects.
type Service interface {
	Address() bluetooth.Address
	Characteristics() []Characteristic
}

// Characteristic is the native handle of a GATT characteristic.
type Characteristic interface {
	Object

	// Flags lists the GATT property flags ("read", "write", "notify", ...).
	Flags() []string

	Read() ([]byte, error)
	Write(data []byte) error

	EnableValueNotifications(cb ValueCallback) error
	DisableValueNotifications() error
}

// Source supplies native handles by address. A false result means the entity
// is currently unavailable (not discovered, powered off, out of range); the
// requesting governor stays NOT_READY and retries on its next maintenance
// cycle.
type Source interface {
	Adapter(addr bluetooth.Address) (Adapter, bool)
	Device(addr bluetooth.Address) (Device, bool)
	Characteristic(addr bluetooth.Address) (Characteristic, bool)
}
