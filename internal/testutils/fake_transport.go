// Package testutils provides the shared test fixtures for the governor
// stack: a scripted in-memory transport tree, a fake manager collaborator,
// fluent builders and diff-based asserters.
package testutils

import (
	"sync"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/transport"
)

// FakeSource is an in-memory transport.Source. Objects registered on it are
// handed out to governors; marking an address offline simulates the native
// object disappearing mid-flight.
type FakeSource struct {
	mu       sync.Mutex
	adapters map[bluetooth.Address]*FakeAdapter
	devices  map[bluetooth.Address]*FakeDevice
	chars    map[bluetooth.Address]*FakeCharacteristic
	offline  map[bluetooth.Address]bool
}

var _ transport.Source = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		adapters: make(map[bluetooth.Address]*FakeAdapter),
		devices:  make(map[bluetooth.Address]*FakeDevice),
		chars:    make(map[bluetooth.Address]*FakeCharacteristic),
		offline:  make(map[bluetooth.Address]bool),
	}
}

func (s *FakeSource) Adapter(addr bluetooth.Address) (transport.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.adapters[addr]
	if !ok || s.offline[addr] {
		return nil, false
	}
	return a, true
}

func (s *FakeSource) Device(addr bluetooth.Address) (transport.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[addr]
	if !ok || s.offline[addr] {
		return nil, false
	}
	return d, true
}

func (s *FakeSource) Characteristic(addr bluetooth.Address) (transport.Characteristic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[addr]
	if !ok || s.offline[addr] {
		return nil, false
	}
	return c, true
}

// SetOffline hides or reveals an address without dropping its state.
func (s *FakeSource) SetOffline(addr bluetooth.Address, offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline[addr] = offline
}

func (s *FakeSource) AddAdapter(a *FakeAdapter) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.addr] = a
	return s
}

func (s *FakeSource) AddDevice(d *FakeDevice) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.addr] = d
	return s
}

func (s *FakeSource) AddCharacteristic(c *FakeCharacteristic) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars[c.addr] = c
	return s
}

// AdapterAt returns the registered fake for direct scripting in tests.
func (s *FakeSource) AdapterAt(addr bluetooth.Address) *FakeAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapters[addr]
}

func (s *FakeSource) DeviceAt(addr bluetooth.Address) *FakeDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[addr]
}

func (s *FakeSource) CharacteristicAt(addr bluetooth.Address) *FakeCharacteristic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[addr]
}

// FakeAdapter is a scripted transport.Adapter. Trigger methods simulate
// property changes arriving from the radio and fire armed callbacks
// synchronously.
type FakeAdapter struct {
	mu sync.Mutex

	addr        bluetooth.Address
	name        string
	alias       string
	powered     bool
	discovering bool

	poweredCb     transport.BoolCallback
	discoveringCb transport.BoolCallback

	disposed int

	// Failure injection, checked on every matching call.
	PoweredErr    error
	SetPoweredErr error
	NotifyErr     error
}

var _ transport.Adapter = (*FakeAdapter)(nil)

func NewFakeAdapter(addr string) *FakeAdapter {
	return &FakeAdapter{addr: bluetooth.MustParseAddress(addr)}
}

func (a *FakeAdapter) Address() bluetooth.Address { return a.addr }

func (a *FakeAdapter) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposed++
}

func (a *FakeAdapter) Name() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name, nil
}

func (a *FakeAdapter) Alias() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alias, nil
}

func (a *FakeAdapter) SetAlias(alias string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alias = alias
	return nil
}

func (a *FakeAdapter) Powered() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PoweredErr != nil {
		return false, a.PoweredErr
	}
	return a.powered, nil
}

func (a *FakeAdapter) SetPowered(powered bool) error {
	a.mu.Lock()
	if a.SetPoweredErr != nil {
		a.mu.Unlock()
		return a.SetPoweredErr
	}
	changed := a.powered != powered
	a.powered = powered
	cb := a.poweredCb
	a.mu.Unlock()

	// Property changes surface as notifications, exactly like the radio
	if changed && cb != nil {
		cb(powered)
	}
	return nil
}

func (a *FakeAdapter) Discovering() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discovering, nil
}

func (a *FakeAdapter) EnablePoweredNotifications(cb transport.BoolCallback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.NotifyErr != nil {
		return a.NotifyErr
	}
	a.poweredCb = cb
	return nil
}

func (a *FakeAdapter) DisablePoweredNotifications() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.poweredCb = nil
	return nil
}

func (a *FakeAdapter) EnableDiscoveringNotifications(cb transport.BoolCallback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.NotifyErr != nil {
		return a.NotifyErr
	}
	a.discoveringCb = cb
	return nil
}

func (a *FakeAdapter) DisableDiscoveringNotifications() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discoveringCb = nil
	return nil
}

// TriggerPowered changes the powered state and fires the armed callback.
func (a *FakeAdapter) TriggerPowered(powered bool) {
	a.mu.Lock()
	a.powered = powered
	cb := a.poweredCb
	a.mu.Unlock()
	if cb != nil {
		cb(powered)
	}
}

// TriggerDiscovering changes the discovering state and fires the armed
// callback.
func (a *FakeAdapter) TriggerDiscovering(discovering bool) {
	a.mu.Lock()
	a.discovering = discovering
	cb := a.discoveringCb
	a.mu.Unlock()
	if cb != nil {
		cb(discovering)
	}
}

func (a *FakeAdapter) DisposeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

func (a *FakeAdapter) PoweredNotificationsArmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poweredCb != nil
}

func (a *FakeAdapter) DiscoveringNotificationsArmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoveringCb != nil
}

// FakeDevice is a scripted transport.Device. Connect, Disconnect and
// SetBlocked fire the corresponding notification callbacks on state changes,
// mirroring how the radio reports property changes.
type FakeDevice struct {
	mu sync.Mutex

	addr  bluetooth.Address
	name  string
	alias string
	ble   bool
	class uint32

	connected bool
	blocked   bool
	rssi      int16
	services  []transport.Service

	connectedCb transport.BoolCallback
	blockedCb   transport.BoolCallback
	resolvedCb  transport.BoolCallback
	rssiCb      transport.RSSICallback

	disposed    int
	connects    int
	disconnects int

	// Failure injection, checked on every matching call.
	ConnectErr    error
	DisconnectErr error
	ConnectedErr  error
	BlockedErr    error
	SetBlockedErr error
	BLEErr        error
	ServicesErr   error
	NotifyErr     error
	DisableErr    error
}

var _ transport.Device = (*FakeDevice)(nil)

func NewFakeDevice(addr string) *FakeDevice {
	return &FakeDevice{addr: bluetooth.MustParseAddress(addr), ble: true}
}

func (d *FakeDevice) Address() bluetooth.Address { return d.addr }

func (d *FakeDevice) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed++
}

func (d *FakeDevice) Name() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name, nil
}

func (d *FakeDevice) Alias() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alias, nil
}

func (d *FakeDevice) SetAlias(alias string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alias = alias
	return nil
}

func (d *FakeDevice) BLEEnabled() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.BLEErr != nil {
		return false, d.BLEErr
	}
	return d.ble, nil
}

func (d *FakeDevice) BluetoothClass() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.class, nil
}

func (d *FakeDevice) Connected() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ConnectedErr != nil {
		return false, d.ConnectedErr
	}
	return d.connected, nil
}

func (d *FakeDevice) Connect() error {
	d.mu.Lock()
	if d.ConnectErr != nil {
		d.mu.Unlock()
		return d.ConnectErr
	}
	d.connects++
	changed := !d.connected
	d.connected = true
	cb := d.connectedCb
	d.mu.Unlock()

	if changed && cb != nil {
		cb(true)
	}
	return nil
}

func (d *FakeDevice) Disconnect() error {
	d.mu.Lock()
	if d.DisconnectErr != nil {
		d.mu.Unlock()
		return d.DisconnectErr
	}
	d.disconnects++
	changed := d.connected
	d.connected = false
	cb := d.connectedCb
	d.mu.Unlock()

	if changed && cb != nil {
		cb(false)
	}
	return nil
}

func (d *FakeDevice) Blocked() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.BlockedErr != nil {
		return false, d.BlockedErr
	}
	return d.blocked, nil
}

func (d *FakeDevice) SetBlocked(blocked bool) error {
	d.mu.Lock()
	if d.SetBlockedErr != nil {
		d.mu.Unlock()
		return d.SetBlockedErr
	}
	changed := d.blocked != blocked
	d.blocked = blocked
	cb := d.blockedCb
	d.mu.Unlock()

	if changed && cb != nil {
		cb(blocked)
	}
	return nil
}

func (d *FakeDevice) RSSI() (int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rssi, nil
}

func (d *FakeDevice) Services() ([]transport.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ServicesErr != nil {
		return nil, d.ServicesErr
	}
	return append([]transport.Service(nil), d.services...), nil
}

func (d *FakeDevice) EnableConnectedNotifications(cb transport.BoolCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NotifyErr != nil {
		return d.NotifyErr
	}
	d.connectedCb = cb
	return nil
}

func (d *FakeDevice) DisableConnectedNotifications() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DisableErr != nil {
		return d.DisableErr
	}
	d.connectedCb = nil
	return nil
}

func (d *FakeDevice) EnableBlockedNotifications(cb transport.BoolCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NotifyErr != nil {
		return d.NotifyErr
	}
	d.blockedCb = cb
	return nil
}

func (d *FakeDevice) DisableBlockedNotifications() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DisableErr != nil {
		return d.DisableErr
	}
	d.blockedCb = nil
	return nil
}

func (d *FakeDevice) EnableServicesResolvedNotifications(cb transport.BoolCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NotifyErr != nil {
		return d.NotifyErr
	}
	d.resolvedCb = cb
	return nil
}

func (d *FakeDevice) DisableServicesResolvedNotifications() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DisableErr != nil {
		return d.DisableErr
	}
	d.resolvedCb = nil
	return nil
}

func (d *FakeDevice) EnableRSSINotifications(cb transport.RSSICallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NotifyErr != nil {
		return d.NotifyErr
	}
	d.rssiCb = cb
	return nil
}

func (d *FakeDevice) DisableRSSINotifications() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DisableErr != nil {
		return d.DisableErr
	}
	d.rssiCb = nil
	return nil
}

// TriggerConnected changes the connection state and fires the armed
// callback, as if the remote side connected or dropped the link.
func (d *FakeDevice) TriggerConnected(connected bool) {
	d.mu.Lock()
	d.connected = connected
	cb := d.connectedCb
	d.mu.Unlock()
	if cb != nil {
		cb(connected)
	}
}

// TriggerBlocked changes the blocked state and fires the armed callback.
func (d *FakeDevice) TriggerBlocked(blocked bool) {
	d.mu.Lock()
	d.blocked = blocked
	cb := d.blockedCb
	d.mu.Unlock()
	if cb != nil {
		cb(blocked)
	}
}

// TriggerServicesResolved fires the services resolved callback.
func (d *FakeDevice) TriggerServicesResolved(resolved bool) {
	d.mu.Lock()
	cb := d.resolvedCb
	d.mu.Unlock()
	if cb != nil {
		cb(resolved)
	}
}

// TriggerRSSI changes the signal strength and fires the armed callback.
func (d *FakeDevice) TriggerRSSI(rssi int16) {
	d.mu.Lock()
	d.rssi = rssi
	cb := d.rssiCb
	d.mu.Unlock()
	if cb != nil {
		cb(rssi)
	}
}

func (d *FakeDevice) DisposeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

func (d *FakeDevice) ConnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

func (d *FakeDevice) DisconnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnects
}

func (d *FakeDevice) ConnectedNotificationsArmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectedCb != nil
}

func (d *FakeDevice) BlockedNotificationsArmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockedCb != nil
}

func (d *FakeDevice) ResolvedNotificationsArmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolvedCb != nil
}

func (d *FakeDevice) RSSINotificationsArmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rssiCb != nil
}

// FakeService is an immutable transport.Service fixture.
type FakeService struct {
	addr  bluetooth.Address
	chars []transport.Characteristic
}

var _ transport.Service = (*FakeService)(nil)

func NewFakeService(addr string, chars ...transport.Characteristic) *FakeService {
	return &FakeService{addr: bluetooth.MustParseAddress(addr), chars: chars}
}

func (s *FakeService) Address() bluetooth.Address { return s.addr }

func (s *FakeService) Characteristics() []transport.Characteristic {
	return append([]transport.Characteristic(nil), s.chars...)
}

// FakeCharacteristic is a scripted transport.Characteristic.
type FakeCharacteristic struct {
	mu sync.Mutex

	addr  bluetooth.Address
	flags []string
	value []byte

	valueCb transport.ValueCallback

	disposed int
	writes   [][]byte

	// Failure injection, checked on every matching call.
	ReadErr   error
	WriteErr  error
	NotifyErr error
}

var _ transport.Characteristic = (*FakeCharacteristic)(nil)

func NewFakeCharacteristic(addr string, flags ...string) *FakeCharacteristic {
	if len(flags) == 0 {
		flags = []string{"read", "write", "notify"}
	}
	return &FakeCharacteristic{addr: bluetooth.MustParseAddress(addr), flags: flags}
}

func (c *FakeCharacteristic) Address() bluetooth.Address { return c.addr }

func (c *FakeCharacteristic) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed++
}

func (c *FakeCharacteristic) Flags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.flags...)
}

// SetFlags replaces the advertised flags, mimicking properties that show up
// only after service resolution settles.
func (c *FakeCharacteristic) SetFlags(flags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = append([]string(nil), flags...)
}

func (c *FakeCharacteristic) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	return append([]byte(nil), c.value...), nil
}

func (c *FakeCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.value = append([]byte(nil), data...)
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *FakeCharacteristic) EnableValueNotifications(cb transport.ValueCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NotifyErr != nil {
		return c.NotifyErr
	}
	c.valueCb = cb
	return nil
}

func (c *FakeCharacteristic) DisableValueNotifications() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valueCb = nil
	return nil
}

// TriggerValue stores a new value and fires the armed callback.
func (c *FakeCharacteristic) TriggerValue(value []byte) {
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	cb := c.valueCb
	c.mu.Unlock()
	if cb != nil {
		cb(value)
	}
}

func (c *FakeCharacteristic) DisposeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *FakeCharacteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *FakeCharacteristic) ValueNotificationsArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valueCb != nil
}
