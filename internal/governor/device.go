package governor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// DefaultOnlineTimeout is the liveness window applied to new device
// governors until SetOnlineTimeout overrides it.
const DefaultOnlineTimeout = 20 * time.Second

var _ manager.DeviceGovernor = (*Device)(nil)

// Device governs a remote Bluetooth device. On top of the generic engine it
// reconciles connection and block state toward the configured controls,
// derives the timeout-based online signal, bridges hardware notifications to
// listeners and cascades service resolution to descendant governors through
// the Manager.
type Device struct {
	*Engine[transport.Device]

	mgr manager.Manager

	// stateMu guards the controls and the cached online flag. The flag
	// itself only changes inside lifecycle hooks, which the engine
	// serializes.
	stateMu           sync.RWMutex
	connectionControl bool
	blockedControl    bool
	online            bool
	onlineTimeout     time.Duration

	// Subscription marks for the four notification channels. Only touched
	// from lifecycle hooks, so no extra locking.
	connectedSub bool
	resolvedSub  bool
	rssiSub      bool
	blockedSub   bool

	deviceListeners listenerSet[manager.DeviceListener]
	gattListeners   listenerSet[manager.GattListener]
}

// NewDevice creates a governor for the device at address. Native handles are
// acquired through mgr, which also resolves the owning adapter and the
// descendant characteristic governors.
func NewDevice(address bluetooth.Address, mgr manager.Manager, logger *logrus.Logger) *Device {
	d := &Device{
		mgr:           mgr,
		onlineTimeout: DefaultOnlineTimeout,
	}
	d.Engine = NewEngine[transport.Device](address, logger, deviceHooks{d})
	return d
}

// deviceHooks adapts the unexported lifecycle methods to the engine
// delegate, keeping their names clear of the public Reset.
type deviceHooks struct{ d *Device }

func (h deviceHooks) Acquire() (transport.Device, bool) {
	return h.d.mgr.NativeDevice(h.d.Address())
}
func (h deviceHooks) Init(dev transport.Device) error   { return h.d.init(dev) }
func (h deviceHooks) Update(dev transport.Device) error { return h.d.update(dev) }
func (h deviceHooks) Reset(dev transport.Device) error  { return h.d.reset(dev) }

func (d *Device) init(dev transport.Device) error {
	if err := d.enableRSSINotifications(dev); err != nil {
		return err
	}
	if err := d.enableConnectionNotifications(dev); err != nil {
		return err
	}
	if err := d.enableServicesResolvedNotifications(dev); err != nil {
		return err
	}
	return d.enableBlockedNotifications(dev)
}

func (d *Device) update(dev transport.Device) error {
	connected, err := d.reconcile(dev)
	if err != nil {
		return err
	}
	if connected {
		d.updateOnline(true)
		d.mgr.RefreshDescendants(d.Address())
		return nil
	}
	d.updateOnline(d.Online())
	return nil
}

// reset runs every teardown step even when earlier ones fail, reporting the
// first failure. Marks are cleared regardless, so the next acquisition
// re-arms every channel from scratch.
func (d *Device) reset(dev transport.Device) error {
	d.logger.Debug("Resetting device governor")
	d.updateOnline(false)

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	d.logger.Debug("Disabling device notifications")
	keep(dev.DisableConnectedNotifications())
	keep(dev.DisableServicesResolvedNotifications())
	keep(dev.DisableRSSINotifications())
	keep(dev.DisableBlockedNotifications())

	connected, err := dev.Connected()
	keep(err)
	if err == nil && connected {
		if derr := dev.Disconnect(); derr != nil {
			keep(fmt.Errorf("failed to disconnect: %w", derr))
		}
		d.notifyConnected(false)
		d.mgr.ResetDescendants(d.Address())
	}

	d.connectedSub = false
	d.resolvedSub = false
	d.rssiSub = false
	d.blockedSub = false
	return firstErr
}

// reconcile drives blocked and connection state toward their controls and
// reports whether the device ended the pass connected. The whole pass is
// skipped while the owning adapter is missing, not ready or not powered, and
// connection handling additionally requires an unblocked, BLE-enabled
// device.
func (d *Device) reconcile(dev transport.Device) (bool, error) {
	adapter, ok := d.mgr.AdapterGovernor(d.Address())
	if !ok || !adapter.Ready() {
		return false, nil
	}
	// A failing powered read counts as not powered: the adapter governor is
	// mid-reset and will come back on its own schedule.
	if powered, err := adapter.Powered(); err != nil || !powered {
		return false, nil
	}

	if err := d.updateBlocked(dev); err != nil {
		return false, err
	}
	if d.BlockedControl() {
		return false, nil
	}

	ble, err := dev.BLEEnabled()
	if err != nil {
		return false, fmt.Errorf("failed to check BLE capability: %w", err)
	}
	if !ble {
		return false, nil
	}
	return d.updateConnected(dev)
}

func (d *Device) updateBlocked(dev transport.Device) error {
	blocked, err := dev.Blocked()
	if err != nil {
		return fmt.Errorf("failed to read blocked state: %w", err)
	}
	want := d.BlockedControl()
	if blocked != want {
		d.logger.Debugf("Changing blocked state: %t", want)
		if err := dev.SetBlocked(want); err != nil {
			return fmt.Errorf("failed to change blocked state: %w", err)
		}
	}
	return nil
}

func (d *Device) updateConnected(dev transport.Device) (bool, error) {
	connected, err := dev.Connected()
	if err != nil {
		return false, fmt.Errorf("failed to read connection state: %w", err)
	}
	control := d.ConnectionControl()
	if control && !connected {
		d.logger.Info("Connecting device")
		if err := dev.Connect(); err != nil {
			return false, fmt.Errorf("failed to connect: %w", err)
		}
		return true, nil
	}
	if !control && connected {
		d.logger.Info("Disconnecting device")
		if err := dev.Disconnect(); err != nil {
			return false, fmt.Errorf("failed to disconnect: %w", err)
		}
		d.mgr.ResetDescendants(d.Address())
		return false, nil
	}
	return connected, nil
}

// updateOnline fires Online/Offline only on an actual change of the cached
// flag, then stores the new value. Callers run under the engine operation
// mutex.
func (d *Device) updateOnline(online bool) {
	d.stateMu.Lock()
	changed := online != d.online
	d.online = online
	d.stateMu.Unlock()
	if changed {
		d.notifyOnline(online)
	}
}

// Online reports timeout-based liveness: some interaction with the device
// happened within the online timeout. Distinct from wire connection state.
func (d *Device) Online() bool {
	last := d.LastActivity()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < d.OnlineTimeout()
}

// OnlineTimeout returns the current liveness window.
func (d *Device) OnlineTimeout() time.Duration {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.onlineTimeout
}

// SetOnlineTimeout changes the liveness window. The boundary moves
// immediately; no event fires until the next online evaluation.
func (d *Device) SetOnlineTimeout(timeout time.Duration) {
	d.stateMu.Lock()
	d.onlineTimeout = timeout
	d.stateMu.Unlock()
}

// ConnectionControl returns the desired connection state.
func (d *Device) ConnectionControl() bool {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.connectionControl
}

// SetConnectionControl sets the desired connection state. The next
// maintenance pass reconciles toward it.
func (d *Device) SetConnectionControl(connected bool) {
	d.stateMu.Lock()
	d.connectionControl = connected
	d.stateMu.Unlock()
}

// BlockedControl returns the desired blocked state.
func (d *Device) BlockedControl() bool {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.blockedControl
}

// SetBlockedControl sets the desired blocked state. While true, connection
// reconciliation is suspended.
func (d *Device) SetBlockedControl(blocked bool) {
	d.stateMu.Lock()
	d.blockedControl = blocked
	d.stateMu.Unlock()
}

// BluetoothClass returns the device class reported by the transport.
func (d *Device) BluetoothClass() (uint32, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return 0, err
	}
	class, err := dev.BluetoothClass()
	if err != nil {
		return 0, fmt.Errorf("failed to read bluetooth class: %w", err)
	}
	return class, nil
}

// BLEEnabled reports whether the device speaks Bluetooth Low Energy.
func (d *Device) BLEEnabled() (bool, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return false, err
	}
	ble, err := dev.BLEEnabled()
	if err != nil {
		return false, fmt.Errorf("failed to check BLE capability: %w", err)
	}
	return ble, nil
}

// Name returns the device name.
func (d *Device) Name() (string, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return "", err
	}
	name, err := dev.Name()
	if err != nil {
		return "", fmt.Errorf("failed to read name: %w", err)
	}
	return name, nil
}

// Alias returns the device alias, empty when none is set.
func (d *Device) Alias() (string, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return "", err
	}
	alias, err := dev.Alias()
	if err != nil {
		return "", fmt.Errorf("failed to read alias: %w", err)
	}
	return alias, nil
}

// SetAlias changes the device alias.
func (d *Device) SetAlias(alias string) error {
	dev, err := d.requireHandle()
	if err != nil {
		return err
	}
	if err := dev.SetAlias(alias); err != nil {
		return fmt.Errorf("failed to set alias: %w", err)
	}
	return nil
}

// DisplayName returns the alias when set, the device name otherwise.
func (d *Device) DisplayName() (string, error) {
	alias, err := d.Alias()
	if err != nil {
		return "", err
	}
	if alias != "" {
		return alias, nil
	}
	return d.Name()
}

// Connected reports the wire-level connection state.
func (d *Device) Connected() (bool, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return false, err
	}
	connected, err := dev.Connected()
	if err != nil {
		return false, fmt.Errorf("failed to read connection state: %w", err)
	}
	return connected, nil
}

// Blocked reports the transport-level blocked state.
func (d *Device) Blocked() (bool, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return false, err
	}
	blocked, err := dev.Blocked()
	if err != nil {
		return false, fmt.Errorf("failed to read blocked state: %w", err)
	}
	return blocked, nil
}

// RSSI returns the received signal strength.
func (d *Device) RSSI() (int16, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return 0, err
	}
	rssi, err := dev.RSSI()
	if err != nil {
		return 0, fmt.Errorf("failed to read RSSI: %w", err)
	}
	return rssi, nil
}

// ServicesToCharacteristics maps every resolved service address to the
// governors of its characteristics, preserving the transport service order.
func (d *Device) ServicesToCharacteristics() (*orderedmap.OrderedMap[bluetooth.Address, []manager.CharacteristicGovernor], error) {
	dev, err := d.requireHandle()
	if err != nil {
		return nil, err
	}
	services, err := dev.Services()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	out := orderedmap.New[bluetooth.Address, []manager.CharacteristicGovernor]()
	for _, svc := range services {
		chars := svc.Characteristics()
		addrs := make([]bluetooth.Address, 0, len(chars))
		for _, ch := range chars {
			addrs = append(addrs, ch.Address())
		}
		out.Set(svc.Address(), d.characteristicGovernors(addrs))
	}
	return out, nil
}

// CharacteristicAddresses returns the addresses of every characteristic of
// every resolved service.
func (d *Device) CharacteristicAddresses() ([]bluetooth.Address, error) {
	dev, err := d.requireHandle()
	if err != nil {
		return nil, err
	}
	services, err := dev.Services()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	var out []bluetooth.Address
	for _, svc := range services {
		for _, ch := range svc.Characteristics() {
			out = append(out, ch.Address())
		}
	}
	return out, nil
}

// CharacteristicGovernors returns governors for every resolved
// characteristic of the device.
func (d *Device) CharacteristicGovernors() ([]manager.CharacteristicGovernor, error) {
	addrs, err := d.CharacteristicAddresses()
	if err != nil {
		return nil, err
	}
	return d.characteristicGovernors(addrs), nil
}

func (d *Device) characteristicGovernors(addrs []bluetooth.Address) []manager.CharacteristicGovernor {
	governors := make([]manager.CharacteristicGovernor, 0, len(addrs))
	for _, g := range d.mgr.GovernorsFor(addrs) {
		if cg, ok := g.(manager.CharacteristicGovernor); ok {
			governors = append(governors, cg)
		}
	}
	return governors
}

// AddDeviceListener registers a listener for generic device events.
func (d *Device) AddDeviceListener(listener manager.DeviceListener) {
	d.deviceListeners.add(listener)
}

// RemoveDeviceListener removes a generic device listener.
func (d *Device) RemoveDeviceListener(listener manager.DeviceListener) {
	d.deviceListeners.remove(listener)
}

// AddGattListener registers a listener for smart device events.
func (d *Device) AddGattListener(listener manager.GattListener) {
	d.gattListeners.add(listener)
}

// RemoveGattListener removes a smart device listener.
func (d *Device) RemoveGattListener(listener manager.GattListener) {
	d.gattListeners.remove(listener)
}

func (d *Device) String() string {
	var sb strings.Builder
	sb.WriteString("[Device] ")
	sb.WriteString(d.Address().String())
	if name, err := d.DisplayName(); err == nil && name != "" {
		sb.WriteString(" [")
		sb.WriteString(name)
		sb.WriteString("]")
	}
	if ble, err := d.BLEEnabled(); err == nil && ble {
		sb.WriteString(" [BLE]")
	}
	return sb.String()
}

// Notification bridges. These run on transport callback goroutines and touch
// the engine so inbound traffic counts toward liveness.

func (d *Device) handleConnected(connected bool) {
	d.logger.Infof("Connected (notification): %t", connected)
	d.notifyConnected(connected)
	d.touch()
}

func (d *Device) handleBlocked(blocked bool) {
	d.logger.Infof("Blocked (notification): %t", blocked)
	d.notifyBlocked(blocked)
	d.touch()
}

func (d *Device) handleRSSI(rssi int16) {
	d.notifyRSSI(rssi)
	d.touch()
}

func (d *Device) handleServicesResolved(resolved bool) {
	d.logger.Infof("Services resolved (notification): %t", resolved)
	if resolved {
		d.mgr.RefreshDescendants(d.Address())
		if services, ok := d.snapshotServices(); ok {
			d.notifyServicesResolved(services)
		}
	} else {
		d.logger.Info("Resetting characteristic governors due to services unresolved event")
		d.mgr.ResetDescendants(d.Address())
		d.notifyServicesUnresolved()
	}
	d.touch()
}

// snapshotServices captures the resolved GATT tree once, so every listener
// receives the same immutable view. A lost handle (reset raced the
// notification) yields no snapshot and delivery is skipped.
func (d *Device) snapshotServices() ([]manager.GattService, bool) {
	dev, err := d.requireHandle()
	if err != nil {
		d.logger.WithError(err).Warn("Failed to snapshot resolved services")
		return nil, false
	}
	services, err := dev.Services()
	if err != nil {
		d.logger.WithError(err).Warn("Failed to snapshot resolved services")
		return nil, false
	}

	out := make([]manager.GattService, 0, len(services))
	for _, svc := range services {
		chars := svc.Characteristics()
		snapshot := make([]manager.GattCharacteristic, 0, len(chars))
		for _, ch := range chars {
			snapshot = append(snapshot, manager.NewGattCharacteristic(ch.Address(), ch.Flags()))
		}
		out = append(out, manager.NewGattService(svc.Address(), snapshot))
	}
	return out, true
}

func (d *Device) notifyConnected(connected bool) {
	notifyAll(d.logger, "connection", &d.gattListeners, func(l manager.GattListener) {
		if connected {
			l.Connected()
		} else {
			l.Disconnected()
		}
	})
}

func (d *Device) notifyServicesResolved(services []manager.GattService) {
	notifyAll(d.logger, "service resolved", &d.gattListeners, func(l manager.GattListener) {
		l.ServicesResolved(services)
	})
}

func (d *Device) notifyServicesUnresolved() {
	notifyAll(d.logger, "service resolved", &d.gattListeners, func(l manager.GattListener) {
		l.ServicesUnresolved()
	})
}

func (d *Device) notifyBlocked(blocked bool) {
	notifyAll(d.logger, "blocked", &d.deviceListeners, func(l manager.DeviceListener) {
		l.Blocked(blocked)
	})
}

func (d *Device) notifyRSSI(rssi int16) {
	notifyAll(d.logger, "RSSI", &d.deviceListeners, func(l manager.DeviceListener) {
		l.RSSIChanged(rssi)
	})
}

func (d *Device) notifyOnline(online bool) {
	notifyAll(d.logger, "online", &d.deviceListeners, func(l manager.DeviceListener) {
		if online {
			l.Online()
		} else {
			l.Offline()
		}
	})
}

// Subscription management. Each channel is armed at most once per
// acquisition.

func (d *Device) enableConnectionNotifications(dev transport.Device) error {
	if d.connectedSub {
		return nil
	}
	d.logger.Debug("Enabling connection notifications")
	if err := dev.EnableConnectedNotifications(d.handleConnected); err != nil {
		return fmt.Errorf("failed to enable connection notifications: %w", err)
	}
	d.connectedSub = true
	return nil
}

func (d *Device) enableServicesResolvedNotifications(dev transport.Device) error {
	if d.resolvedSub {
		return nil
	}
	d.logger.Debug("Enabling services resolved notifications")
	if err := dev.EnableServicesResolvedNotifications(d.handleServicesResolved); err != nil {
		return fmt.Errorf("failed to enable services resolved notifications: %w", err)
	}
	d.resolvedSub = true
	return nil
}

func (d *Device) enableRSSINotifications(dev transport.Device) error {
	if d.rssiSub {
		return nil
	}
	d.logger.Debug("Enabling RSSI notifications")
	if err := dev.EnableRSSINotifications(d.handleRSSI); err != nil {
		return fmt.Errorf("failed to enable RSSI notifications: %w", err)
	}
	d.rssiSub = true
	return nil
}

func (d *Device) enableBlockedNotifications(dev transport.Device) error {
	if d.blockedSub {
		return nil
	}
	d.logger.Debug("Enabling blocked notifications")
	if err := dev.EnableBlockedNotifications(d.handleBlocked); err != nil {
		return fmt.Errorf("failed to enable blocked notifications: %w", err)
	}
	d.blockedSub = true
	return nil
}
