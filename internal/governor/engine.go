// Package governor implements the lifecycle state machines that keep
// Bluetooth entities (adapters, devices, characteristics) usable in spite of
// a volatile transport layer. Each governor owns at most one native handle
// and oscillates between NOT_READY and READY as the handle comes and goes.
package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// Delegate supplies the kind-specific behavior an Engine drives. Acquire asks
// the transport for a native handle; false means none is available yet and
// the governor stays NOT_READY. The remaining hooks run only while a handle
// is held; any non-nil error forces a reset and is never propagated further.
type Delegate[H transport.Object] interface {
	Acquire() (H, bool)
	Init(handle H) error
	Update(handle H) error
	Reset(handle H) error
}

// Engine is the generic acquire/init/update/reset state machine shared by
// every governor kind. Invariant: Ready() is true exactly while a native
// handle is held.
//
// Maintain and Reset are mutually exclusive per engine; engines for
// different addresses run fully concurrently. Listeners are invoked
// synchronously and must not call back into Maintain or Reset.
type Engine[H transport.Object] struct {
	address  bluetooth.Address
	logger   *logrus.Entry
	delegate Delegate[H]

	// opMu serializes Maintain and Reset. Never held while reading state
	// through the accessors below.
	opMu sync.Mutex

	// mu guards the handle reference and the last-activity stamp so
	// accessors and notification bridges never wait behind a transport call.
	mu           sync.RWMutex
	handle       H
	hasHandle    bool
	lastActivity time.Time

	listeners listenerSet[manager.GovernorListener]
}

// NewEngine creates an engine for address driven by delegate. The delegate is
// usually the governor embedding the engine, wrapped to avoid name clashes
// with the public lifecycle methods.
func NewEngine[H transport.Object](address bluetooth.Address, logger *logrus.Logger, delegate Delegate[H]) *Engine[H] {
	return &Engine[H]{
		address: address,
		logger: logger.WithFields(logrus.Fields{
			"kind": address.Kind().String(),
			"url":  address.String(),
		}),
		delegate: delegate,
	}
}

// Address returns the governed entity address.
func (e *Engine[H]) Address() bluetooth.Address {
	return e.address
}

// Ready reports whether a native handle is currently held.
func (e *Engine[H]) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasHandle
}

// LastActivity returns the time of the last successful interaction with the
// native object, either a completed update cycle or an inbound notification.
func (e *Engine[H]) LastActivity() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastActivity
}

func (e *Engine[H]) String() string {
	return fmt.Sprintf("[%s] %s", kindLabel(e.address.Kind()), e.address)
}

// Maintain performs one governing cycle: acquire and initialize the native
// handle if none is held, then reconcile state through the update hook. Hook
// failures are logged and answered with a forced reset; nothing propagates
// to the caller.
func (e *Engine[H]) Maintain() {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	handle, ok := e.handleRef()
	if !ok {
		handle, ok = e.delegate.Acquire()
		if !ok {
			e.logger.Debug("Native object is not available")
			return
		}
		e.setHandle(handle)
		if err := e.runHook("init", func() error { return e.delegate.Init(handle) }); err != nil {
			e.logger.WithError(err).Warn("Failed to initialize governor, resetting")
			e.resetLocked()
			return
		}
		e.logger.Debug("Governor is ready")
		e.notifyReady(true)
	}

	if err := e.runHook("update", func() error { return e.delegate.Update(handle) }); err != nil {
		e.logger.WithError(err).Warn("Failed to update governor, resetting")
		e.resetLocked()
		return
	}
	e.touch()
}

// Reset forces the governor back to NOT_READY, releasing the native handle
// if one is held. Safe to call at any time, including when already reset.
func (e *Engine[H]) Reset() {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.resetLocked()
}

// resetLocked releases the handle under opMu. The teardown hook runs
// best-effort: its failure is logged but the handle is disposed and cleared
// regardless, so a broken transport object can never be retained.
func (e *Engine[H]) resetLocked() {
	handle, ok := e.handleRef()
	if !ok {
		return
	}
	if err := e.runHook("reset", func() error { return e.delegate.Reset(handle) }); err != nil {
		e.logger.WithError(err).Warn("Failed to tear down governor, releasing handle regardless")
	}
	e.notifyReady(false)
	handle.Dispose()
	e.clearHandle()
	e.logger.Debug("Governor has been reset")
}

// runHook converts hook panics into errors so a misbehaving delegate follows
// the same forced-reset path as an ordinary failure.
func (e *Engine[H]) runHook(name string, hook func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s hook panicked: %v", name, r)
		}
	}()
	return hook()
}

// handleRef reads the current handle without requiring it to exist.
func (e *Engine[H]) handleRef() (H, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handle, e.hasHandle
}

// requireHandle returns the current handle or a NotReadyError carrying the
// governed address. Accessors gate on this before touching the transport.
func (e *Engine[H]) requireHandle() (H, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.hasHandle {
		var zero H
		return zero, &manager.NotReadyError{Address: e.address}
	}
	return e.handle, nil
}

func (e *Engine[H]) setHandle(handle H) {
	e.mu.Lock()
	e.handle = handle
	e.hasHandle = true
	e.mu.Unlock()
}

func (e *Engine[H]) clearHandle() {
	e.mu.Lock()
	var zero H
	e.handle = zero
	e.hasHandle = false
	e.mu.Unlock()
}

// touch stamps the last-activity time and tells governor listeners. Inbound
// hardware notifications call this too, so they count toward liveness
// exactly like a completed update cycle.
func (e *Engine[H]) touch() {
	now := time.Now()
	e.mu.Lock()
	e.lastActivity = now
	e.mu.Unlock()
	e.notifyLastUpdated(now)
}

// AddGovernorListener registers a lifecycle listener.
func (e *Engine[H]) AddGovernorListener(listener manager.GovernorListener) {
	e.listeners.add(listener)
}

// RemoveGovernorListener removes a previously registered lifecycle listener.
func (e *Engine[H]) RemoveGovernorListener(listener manager.GovernorListener) {
	e.listeners.remove(listener)
}

func (e *Engine[H]) notifyReady(ready bool) {
	notifyAll(e.logger, "governor", &e.listeners, func(l manager.GovernorListener) {
		l.Ready(ready)
	})
}

func (e *Engine[H]) notifyLastUpdated(at time.Time) {
	notifyAll(e.logger, "governor", &e.listeners, func(l manager.GovernorListener) {
		l.LastUpdatedChanged(at)
	})
}

func kindLabel(k bluetooth.Kind) string {
	switch k {
	case bluetooth.KindAdapter:
		return "Adapter"
	case bluetooth.KindDevice:
		return "Device"
	case bluetooth.KindService:
		return "Service"
	case bluetooth.KindCharacteristic:
		return "Characteristic"
	default:
		return "Governor"
	}
}
