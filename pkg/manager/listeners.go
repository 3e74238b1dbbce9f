package manager

import "time"

// GovernorListener observes lifecycle transitions of a single governor.
// Callbacks are delivered synchronously; a panicking listener is logged and
// skipped without affecting other listeners or governor state.
type GovernorListener interface {
	// Ready fires on every NOT_READY/READY transition: true after the
	// native handle is acquired and initialized, false on reset.
	Ready(ready bool)

	// LastUpdatedChanged fires after every successful maintenance pass and
	// every inbound hardware notification.
	LastUpdatedChanged(at time.Time)
}

// DeviceListener observes generic (non-GATT) device events.
type DeviceListener interface {
	Blocked(blocked bool)
	RSSIChanged(rssi int16)

	// Online and Offline are edge-triggered: each fires exactly once per
	// liveness transition, never while the state is unchanged.
	Online()
	Offline()
}

// GattListener observes smart-device connection and service resolution
// events.
type GattListener interface {
	Connected()
	Disconnected()

	// ServicesResolved delivers one immutable snapshot of the resolved
	// service tree, shared by all listeners of the same resolution event.
	ServicesResolved(services []GattService)
	ServicesUnresolved()
}

// AdapterListener observes adapter state events.
type AdapterListener interface {
	Powered(powered bool)
	Discovering(discovering bool)
}

// ValueListener receives characteristic value notifications.
type ValueListener interface {
	ValueChanged(value []byte)
}
