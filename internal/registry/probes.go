package registry

import (
	"fmt"
	"time"

	"github.com/srg/blegov/internal/eventlog"
	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
)

// installProbes subscribes event-log probes matching the governor kind.
// Probes are installed exactly once, before the governor becomes visible to
// other callers.
func (r *Registry) installProbes(g manager.Governor) {
	addr := g.Address()
	g.AddGovernorListener(&lifecycleProbe{r: r, addr: addr})
	switch typed := g.(type) {
	case manager.DeviceGovernor:
		typed.AddDeviceListener(&deviceProbe{r: r, addr: addr})
		typed.AddGattListener(&gattProbe{r: r, addr: addr})
	case manager.AdapterGovernor:
		typed.AddAdapterListener(&adapterProbe{r: r, addr: addr})
	}
}

func (r *Registry) publish(addr bluetooth.Address, kind eventlog.Kind, flag bool, details string) {
	r.events.Send(eventlog.Event{
		Time:    time.Now(),
		Address: addr,
		Kind:    kind,
		Flag:    flag,
		Details: details,
	})
}

// lifecycleProbe republishes NOT_READY/READY transitions.
type lifecycleProbe struct {
	r    *Registry
	addr bluetooth.Address
}

func (p *lifecycleProbe) Ready(ready bool) {
	p.r.publish(p.addr, eventlog.KindReady, ready, "")
}

// LastUpdatedChanged is not republished: per-pass activity stamps would
// flood the window, and liveness already shows up as online edges.
func (p *lifecycleProbe) LastUpdatedChanged(time.Time) {}

type deviceProbe struct {
	r    *Registry
	addr bluetooth.Address
}

func (p *deviceProbe) Blocked(blocked bool) {
	p.r.publish(p.addr, eventlog.KindBlocked, blocked, "")
}

func (p *deviceProbe) RSSIChanged(rssi int16) {
	p.r.publish(p.addr, eventlog.KindRSSI, true, fmt.Sprintf("%d dBm", rssi))
}

func (p *deviceProbe) Online() {
	p.r.publish(p.addr, eventlog.KindOnline, true, "")
}

func (p *deviceProbe) Offline() {
	p.r.publish(p.addr, eventlog.KindOnline, false, "")
}

type gattProbe struct {
	r    *Registry
	addr bluetooth.Address
}

func (p *gattProbe) Connected() {
	p.r.publish(p.addr, eventlog.KindConnected, true, "")
}

func (p *gattProbe) Disconnected() {
	p.r.publish(p.addr, eventlog.KindConnected, false, "")
}

func (p *gattProbe) ServicesResolved(services []manager.GattService) {
	p.r.publish(p.addr, eventlog.KindResolved, true, fmt.Sprintf("%d services", len(services)))
}

func (p *gattProbe) ServicesUnresolved() {
	p.r.publish(p.addr, eventlog.KindResolved, false, "")
}

type adapterProbe struct {
	r    *Registry
	addr bluetooth.Address
}

func (p *adapterProbe) Powered(powered bool) {
	p.r.publish(p.addr, eventlog.KindPowered, powered, "")
}

func (p *adapterProbe) Discovering(discovering bool) {
	p.r.publish(p.addr, eventlog.KindDiscovering, discovering, "")
}
