package governor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

var _ manager.AdapterGovernor = (*Adapter)(nil)

// Adapter governs a local Bluetooth adapter: it reconciles the powered state
// toward the configured control and bridges powered/discovering
// notifications to listeners. Device governors consult it before touching
// their own devices.
type Adapter struct {
	*Engine[transport.Adapter]

	mgr manager.Manager

	stateMu        sync.RWMutex
	poweredControl bool

	// Subscription marks. Only touched from lifecycle hooks, which the
	// engine serializes.
	poweredSub     bool
	discoveringSub bool

	adapterListeners listenerSet[manager.AdapterListener]
}

// NewAdapter creates a governor for the adapter at address. Adapters are
// kept powered by default.
func NewAdapter(address bluetooth.Address, mgr manager.Manager, logger *logrus.Logger) *Adapter {
	a := &Adapter{
		mgr:            mgr,
		poweredControl: true,
	}
	a.Engine = NewEngine[transport.Adapter](address, logger, adapterHooks{a})
	return a
}

type adapterHooks struct{ a *Adapter }

func (h adapterHooks) Acquire() (transport.Adapter, bool) {
	return h.a.mgr.NativeAdapter(h.a.Address())
}
func (h adapterHooks) Init(ad transport.Adapter) error   { return h.a.init(ad) }
func (h adapterHooks) Update(ad transport.Adapter) error { return h.a.update(ad) }
func (h adapterHooks) Reset(ad transport.Adapter) error  { return h.a.reset(ad) }

func (a *Adapter) init(ad transport.Adapter) error {
	if err := a.enablePoweredNotifications(ad); err != nil {
		return err
	}
	return a.enableDiscoveringNotifications(ad)
}

func (a *Adapter) update(ad transport.Adapter) error {
	return a.updatePowered(ad)
}

func (a *Adapter) reset(ad transport.Adapter) error {
	a.logger.Debug("Resetting adapter governor")

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(ad.DisablePoweredNotifications())
	keep(ad.DisableDiscoveringNotifications())

	a.poweredSub = false
	a.discoveringSub = false
	return firstErr
}

func (a *Adapter) updatePowered(ad transport.Adapter) error {
	powered, err := ad.Powered()
	if err != nil {
		return fmt.Errorf("failed to read powered state: %w", err)
	}
	want := a.PoweredControl()
	if powered != want {
		a.logger.Debugf("Changing powered state: %t", want)
		if err := ad.SetPowered(want); err != nil {
			return fmt.Errorf("failed to change powered state: %w", err)
		}
	}
	return nil
}

// PoweredControl returns the desired powered state.
func (a *Adapter) PoweredControl() bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.poweredControl
}

// SetPoweredControl sets the desired powered state. The next maintenance
// pass reconciles toward it.
func (a *Adapter) SetPoweredControl(powered bool) {
	a.stateMu.Lock()
	a.poweredControl = powered
	a.stateMu.Unlock()
}

// Powered reports the transport-level powered state.
func (a *Adapter) Powered() (bool, error) {
	ad, err := a.requireHandle()
	if err != nil {
		return false, err
	}
	powered, err := ad.Powered()
	if err != nil {
		return false, fmt.Errorf("failed to read powered state: %w", err)
	}
	return powered, nil
}

// Discovering reports whether the adapter is scanning.
func (a *Adapter) Discovering() (bool, error) {
	ad, err := a.requireHandle()
	if err != nil {
		return false, err
	}
	discovering, err := ad.Discovering()
	if err != nil {
		return false, fmt.Errorf("failed to read discovering state: %w", err)
	}
	return discovering, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() (string, error) {
	ad, err := a.requireHandle()
	if err != nil {
		return "", err
	}
	name, err := ad.Name()
	if err != nil {
		return "", fmt.Errorf("failed to read name: %w", err)
	}
	return name, nil
}

// Alias returns the adapter alias, empty when none is set.
func (a *Adapter) Alias() (string, error) {
	ad, err := a.requireHandle()
	if err != nil {
		return "", err
	}
	alias, err := ad.Alias()
	if err != nil {
		return "", fmt.Errorf("failed to read alias: %w", err)
	}
	return alias, nil
}

// SetAlias changes the adapter alias.
func (a *Adapter) SetAlias(alias string) error {
	ad, err := a.requireHandle()
	if err != nil {
		return err
	}
	if err := ad.SetAlias(alias); err != nil {
		return fmt.Errorf("failed to set alias: %w", err)
	}
	return nil
}

// DisplayName returns the alias when set, the adapter name otherwise.
func (a *Adapter) DisplayName() (string, error) {
	alias, err := a.Alias()
	if err != nil {
		return "", err
	}
	if alias != "" {
		return alias, nil
	}
	return a.Name()
}

// DeviceGovernors returns governors for the devices known under this
// adapter.
func (a *Adapter) DeviceGovernors() []manager.DeviceGovernor {
	return a.mgr.DeviceGovernors(a.Address())
}

// AddAdapterListener registers a listener for adapter events.
func (a *Adapter) AddAdapterListener(listener manager.AdapterListener) {
	a.adapterListeners.add(listener)
}

// RemoveAdapterListener removes an adapter listener.
func (a *Adapter) RemoveAdapterListener(listener manager.AdapterListener) {
	a.adapterListeners.remove(listener)
}

func (a *Adapter) String() string {
	var sb strings.Builder
	sb.WriteString("[Adapter] ")
	sb.WriteString(a.Address().String())
	if name, err := a.DisplayName(); err == nil && name != "" {
		sb.WriteString(" [")
		sb.WriteString(name)
		sb.WriteString("]")
	}
	return sb.String()
}

// Notification bridges, invoked on transport callback goroutines.

func (a *Adapter) handlePowered(powered bool) {
	a.logger.Infof("Powered (notification): %t", powered)
	a.notifyPowered(powered)
	a.touch()
}

func (a *Adapter) handleDiscovering(discovering bool) {
	a.logger.Debugf("Discovering (notification): %t", discovering)
	a.notifyDiscovering(discovering)
	a.touch()
}

func (a *Adapter) notifyPowered(powered bool) {
	notifyAll(a.logger, "powered", &a.adapterListeners, func(l manager.AdapterListener) {
		l.Powered(powered)
	})
}

func (a *Adapter) notifyDiscovering(discovering bool) {
	notifyAll(a.logger, "discovering", &a.adapterListeners, func(l manager.AdapterListener) {
		l.Discovering(discovering)
	})
}

// Subscription management. Each channel is armed at most once per
// acquisition.

func (a *Adapter) enablePoweredNotifications(ad transport.Adapter) error {
	if a.poweredSub {
		return nil
	}
	a.logger.Debug("Enabling powered notifications")
	if err := ad.EnablePoweredNotifications(a.handlePowered); err != nil {
		return fmt.Errorf("failed to enable powered notifications: %w", err)
	}
	a.poweredSub = true
	return nil
}

func (a *Adapter) enableDiscoveringNotifications(ad transport.Adapter) error {
	if a.discoveringSub {
		return nil
	}
	a.logger.Debug("Enabling discovering notifications")
	if err := ad.EnableDiscoveringNotifications(a.handleDiscovering); err != nil {
		return fmt.Errorf("failed to enable discovering notifications: %w", err)
	}
	a.discoveringSub = true
	return nil
}
