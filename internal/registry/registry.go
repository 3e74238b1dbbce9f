// Package registry owns the governor instances of a transport tree: one
// governor per governed address, created on first reference and kept until
// the address is dropped or the registry is disposed. A built-in scheduler
// drives periodic maintenance through a worker pool, and lifecycle
// transitions are republished into a bounded event log for diagnostics.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/blegov/internal/eventlog"
	"github.com/srg/blegov/internal/governor"
	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/config"
	"github.com/srg/blegov/pkg/manager"
	"github.com/srg/blegov/pkg/transport"
)

// maintenanceQueueDepth bounds the work queue between the scheduler and the
// worker pool. A full queue drops requests; the next tick re-enqueues every
// governor, so nothing is lost for longer than one refresh period.
const maintenanceQueueDepth = 1024

// Registry is the shipped manager.Manager implementation. It resolves native
// handles straight from the transport source, hands out governors keyed by
// canonical address, and coordinates descendant refresh and reset across the
// governed tree.
//
// All methods are safe for concurrent use.
type Registry struct {
	source transport.Source
	cfg    *config.Config
	logger *logrus.Logger
	log    *logrus.Entry

	governors *hashmap.Map[string, manager.Governor]
	work      chan manager.Governor

	events    *eventlog.RingChannel[eventlog.Event]
	collector *eventlog.Collector

	// runMu serializes Start, Stop and Dispose. It is held across the
	// worker join so overlapping calls cannot interleave scheduler
	// generations.
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ manager.Manager = (*Registry)(nil)

// New creates a registry over source. A nil cfg falls back to DefaultConfig;
// a nil logger falls back to the logger cfg builds.
func New(source transport.Source, cfg *config.Config, logger *logrus.Logger) (*Registry, error) {
	if source == nil {
		return nil, fmt.Errorf("transport source cannot be nil")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}
	if logger == nil {
		logger = cfg.NewLogger()
	}

	log := logger.WithField("component", "registry")
	events := eventlog.NewRingChannel[eventlog.Event](cfg.EventBufferSize)
	collector, err := eventlog.NewCollector(events.C(), uint32(cfg.EventBufferSize), func(err error) {
		log.WithError(err).Error("Event collector failed")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event collector: %w", err)
	}

	return &Registry{
		source:    source,
		cfg:       cfg,
		logger:    logger,
		log:       log,
		governors: hashmap.New[string, manager.Governor](),
		work:      make(chan manager.Governor, maintenanceQueueDepth),
		events:    events,
		collector: collector,
	}, nil
}

// Govern returns the governor for addr, creating it on first reference. The
// governor kind follows the address shape; bare service addresses are not
// governed (service state lives in the owning device's resolved snapshot)
// and report false.
func (r *Registry) Govern(addr bluetooth.Address) (manager.Governor, bool) {
	key := addr.String()
	if g, ok := r.governors.Get(key); ok {
		return g, true
	}

	candidate, ok := r.newGovernor(addr)
	if !ok {
		return nil, false
	}
	// Probes go on before publication so no transition can slip past the
	// event log. A candidate losing the insert race is discarded unused.
	r.installProbes(candidate)
	g, existing := r.governors.GetOrInsert(key, candidate)
	if !existing {
		r.log.WithField("url", key).Debug("Governor created")
		r.scheduleMaintain(g)
	}
	return g, true
}

// newGovernor constructs the governor kind matching the address shape.
func (r *Registry) newGovernor(addr bluetooth.Address) (manager.Governor, bool) {
	switch addr.Kind() {
	case bluetooth.KindAdapter:
		return governor.NewAdapter(addr, r, r.logger), true
	case bluetooth.KindDevice:
		d := governor.NewDevice(addr, r, r.logger)
		d.SetOnlineTimeout(r.cfg.OnlineTimeout())
		return d, true
	case bluetooth.KindCharacteristic:
		return governor.NewCharacteristic(addr, r, r.logger, r.cfg.ValueBufferSize), true
	default:
		return nil, false
	}
}

// Lookup returns the governor for addr without creating one.
func (r *Registry) Lookup(addr bluetooth.Address) (manager.Governor, bool) {
	return r.governors.Get(addr.String())
}

// Drop resets and removes the governor for addr together with every governed
// descendant. It reports whether addr itself was governed.
func (r *Registry) Drop(addr bluetooth.Address) bool {
	_, found := r.governors.Get(addr.String())
	for _, g := range r.descendantsOf(addr, true) {
		g.Reset()
		r.governors.Del(g.Address().String())
	}
	return found
}

// Governors returns the governed set in canonical address order.
func (r *Registry) Governors() []manager.Governor {
	return r.snapshot()
}

// Describe renders the governed set, one governor per line in canonical
// address order under a count header. The layout is stable so diagnostics
// can diff successive snapshots.
func (r *Registry) Describe() string {
	govs := r.snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "governors: %d\n", len(govs))
	for _, g := range govs {
		state := "NOT_READY"
		if g.Ready() {
			state = "READY"
		}
		fmt.Fprintf(&sb, "%s %s\n", g, state)
	}
	return sb.String()
}

// EventLog exposes the lifecycle event collector for diagnostics consumers.
func (r *Registry) EventLog() *eventlog.Collector {
	return r.collector
}

// NativeAdapter implements manager.Manager.
func (r *Registry) NativeAdapter(addr bluetooth.Address) (transport.Adapter, bool) {
	return r.source.Adapter(addr)
}

// NativeDevice implements manager.Manager.
func (r *Registry) NativeDevice(addr bluetooth.Address) (transport.Device, bool) {
	return r.source.Device(addr)
}

// NativeCharacteristic implements manager.Manager.
func (r *Registry) NativeCharacteristic(addr bluetooth.Address) (transport.Characteristic, bool) {
	return r.source.Characteristic(addr)
}

// AdapterGovernor resolves the governor of the adapter owning addr, creating
// it on first reference.
func (r *Registry) AdapterGovernor(addr bluetooth.Address) (manager.AdapterGovernor, bool) {
	g, ok := r.Govern(addr.AdapterAddress())
	if !ok {
		return nil, false
	}
	ag, ok := g.(manager.AdapterGovernor)
	return ag, ok
}

// GovernorsFor resolves governors for the given addresses, creating them on
// first reference. Addresses that cannot be governed are skipped.
func (r *Registry) GovernorsFor(addrs []bluetooth.Address) []manager.Governor {
	govs := make([]manager.Governor, 0, len(addrs))
	for _, addr := range addrs {
		if g, ok := r.Govern(addr); ok {
			govs = append(govs, g)
		}
	}
	return govs
}

// DeviceGovernors lists governed devices under the given adapter address.
func (r *Registry) DeviceGovernors(addr bluetooth.Address) []manager.DeviceGovernor {
	adapter := addr.AdapterAddress()
	var out []manager.DeviceGovernor
	for _, g := range r.snapshot() {
		if g.Address().Kind() != bluetooth.KindDevice || !g.Address().IsDescendantOf(adapter) {
			continue
		}
		if dg, ok := g.(manager.DeviceGovernor); ok {
			out = append(out, dg)
		}
	}
	return out
}

// RefreshDescendants schedules maintenance for every governed descendant of
// addr without blocking the caller. Workers calling in during their own
// maintenance pass must never stall, so a full queue drops the request.
func (r *Registry) RefreshDescendants(addr bluetooth.Address) {
	for _, g := range r.descendantsOf(addr, false) {
		r.scheduleMaintain(g)
	}
}

// ResetDescendants synchronously resets every governed descendant of addr.
// When the call returns, no descendant holds a native handle.
func (r *Registry) ResetDescendants(addr bluetooth.Address) {
	for _, g := range r.descendantsOf(addr, false) {
		g.Reset()
	}
}

// Dispose stops the scheduler, resets every governor deepest-first and clears
// the registry. Events already captured remain consumable. Safe to call more
// than once.
func (r *Registry) Dispose() {
	r.Stop()

	keys := make([]string, 0, r.governors.Len())
	r.governors.Range(func(key string, _ manager.Governor) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	for i := len(keys) - 1; i >= 0; i-- {
		if g, ok := r.governors.Get(keys[i]); ok {
			g.Reset()
			r.governors.Del(keys[i])
		}
	}
	r.log.Info("Registry disposed")
}

// snapshot returns the governed set sorted by canonical address, which
// happens to list parents before their descendants.
func (r *Registry) snapshot() []manager.Governor {
	govs := make([]manager.Governor, 0, r.governors.Len())
	r.governors.Range(func(_ string, g manager.Governor) bool {
		govs = append(govs, g)
		return true
	})
	sort.Slice(govs, func(i, j int) bool {
		return govs[i].Address().String() < govs[j].Address().String()
	})
	return govs
}

func (r *Registry) descendantsOf(addr bluetooth.Address, includeSelf bool) []manager.Governor {
	var out []manager.Governor
	for _, g := range r.snapshot() {
		ga := g.Address()
		if ga.IsDescendantOf(addr) || (includeSelf && ga == addr) {
			out = append(out, g)
		}
	}
	return out
}
