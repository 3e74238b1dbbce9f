package governor

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// GATT characteristic property flags the governor cares about.
const (
	flagRead                 = "read"
	flagWrite                = "write"
	flagWriteWithoutResponse = "write-without-response"
	flagNotify               = "notify"
	flagIndicate             = "indicate"
)

// DefaultValueStreamCapacity bounds the notification capture buffer unless
// overridden at construction.
const DefaultValueStreamCapacity = 4096

var _ manager.CharacteristicGovernor = (*Characteristic)(nil)

// Characteristic governs a GATT characteristic: it arms value notifications
// when the characteristic supports them, fans inbound values out to
// listeners and a bounded capture stream, and passes reads and writes
// through to the transport.
type Characteristic struct {
	*Engine[transport.Characteristic]

	mgr manager.Manager

	// valueSub marks an armed subscription. Only touched from lifecycle
	// hooks, which the engine serializes.
	valueSub bool

	valueListeners listenerSet[manager.ValueListener]
	stream         *ValueStream
}

// NewCharacteristic creates a governor for the characteristic at address.
// streamCapacity bounds the value capture buffer in bytes; zero or negative
// picks the default.
func NewCharacteristic(address bluetooth.Address, mgr manager.Manager, logger *logrus.Logger, streamCapacity int) *Characteristic {
	if streamCapacity <= 0 {
		streamCapacity = DefaultValueStreamCapacity
	}
	c := &Characteristic{
		mgr:    mgr,
		stream: NewValueStream(streamCapacity),
	}
	c.Engine = NewEngine[transport.Characteristic](address, logger, characteristicHooks{c})
	return c
}

type characteristicHooks struct{ c *Characteristic }

func (h characteristicHooks) Acquire() (transport.Characteristic, bool) {
	return h.c.mgr.NativeCharacteristic(h.c.Address())
}
func (h characteristicHooks) Init(ch transport.Characteristic) error   { return h.c.init(ch) }
func (h characteristicHooks) Update(ch transport.Characteristic) error { return h.c.update(ch) }
func (h characteristicHooks) Reset(ch transport.Characteristic) error  { return h.c.reset(ch) }

func (c *Characteristic) init(ch transport.Characteristic) error {
	return c.enableValueNotifications(ch)
}

// update re-arms the subscription in case the flags did not advertise notify
// support at init time.
func (c *Characteristic) update(ch transport.Characteristic) error {
	return c.enableValueNotifications(ch)
}

func (c *Characteristic) reset(ch transport.Characteristic) error {
	c.logger.Debug("Resetting characteristic governor")
	var err error
	if c.valueSub {
		err = ch.DisableValueNotifications()
	}
	c.valueSub = false
	return err
}

func (c *Characteristic) enableValueNotifications(ch transport.Characteristic) error {
	if c.valueSub || !canNotify(ch.Flags()) {
		return nil
	}
	c.logger.Debug("Enabling value notifications")
	if err := ch.EnableValueNotifications(c.handleValue); err != nil {
		return fmt.Errorf("failed to enable value notifications: %w", err)
	}
	c.valueSub = true
	return nil
}

func canNotify(flags []string) bool {
	for _, flag := range flags {
		if flag == flagNotify || flag == flagIndicate {
			return true
		}
	}
	return false
}

// handleValue runs on the transport callback goroutine. Inbound values feed
// the capture stream and every listener, and count toward liveness.
func (c *Characteristic) handleValue(value []byte) {
	if !c.stream.Push(value) {
		c.logger.Warnf("Value exceeds capture buffer, dropped %d bytes", len(value))
	}
	c.notifyValue(value)
	c.touch()
}

func (c *Characteristic) notifyValue(value []byte) {
	notifyAll(c.logger, "value", &c.valueListeners, func(l manager.ValueListener) {
		l.ValueChanged(value)
	})
}

// Flags returns the characteristic property flags.
func (c *Characteristic) Flags() ([]string, error) {
	ch, err := c.requireHandle()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), ch.Flags()...), nil
}

// Readable reports whether the characteristic supports reads.
func (c *Characteristic) Readable() (bool, error) {
	return c.hasFlag(flagRead)
}

// Writable reports whether the characteristic supports writes, with or
// without response.
func (c *Characteristic) Writable() (bool, error) {
	return c.hasFlag(flagWrite, flagWriteWithoutResponse)
}

// Notifiable reports whether the characteristic supports notifications or
// indications.
func (c *Characteristic) Notifiable() (bool, error) {
	return c.hasFlag(flagNotify, flagIndicate)
}

func (c *Characteristic) hasFlag(names ...string) (bool, error) {
	ch, err := c.requireHandle()
	if err != nil {
		return false, err
	}
	for _, flag := range ch.Flags() {
		for _, name := range names {
			if flag == name {
				return true, nil
			}
		}
	}
	return false, nil
}

// Read fetches the current value from the transport.
func (c *Characteristic) Read() ([]byte, error) {
	ch, err := c.requireHandle()
	if err != nil {
		return nil, err
	}
	value, err := ch.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read value: %w", err)
	}
	c.touch()
	return value, nil
}

// Write sends a value to the transport.
func (c *Characteristic) Write(data []byte) error {
	ch, err := c.requireHandle()
	if err != nil {
		return err
	}
	if err := ch.Write(data); err != nil {
		return fmt.Errorf("failed to write value: %w", err)
	}
	c.touch()
	return nil
}

// NextValue pops the oldest captured notification value.
func (c *Characteristic) NextValue() ([]byte, bool) {
	return c.stream.Next()
}

// DrainValues pops every captured notification value, oldest first.
func (c *Characteristic) DrainValues() [][]byte {
	return c.stream.Drain()
}

// AddValueListener registers a listener for inbound values.
func (c *Characteristic) AddValueListener(listener manager.ValueListener) {
	c.valueListeners.add(listener)
}

// RemoveValueListener removes a value listener.
func (c *Characteristic) RemoveValueListener(listener manager.ValueListener) {
	c.valueListeners.remove(listener)
}
