// Package eventlog buffers governor lifecycle transitions for diagnostics
// consumers. Producers push through a RingChannel that never blocks; a
// Collector retains a bounded window of the most recent events.
package eventlog

import (
	"fmt"
	"time"

	"github.com/srg/blegov/pkg/bluetooth"
)

// Kind labels the lifecycle transition an Event records.
type Kind string

const (
	KindReady       Kind = "ready"
	KindOnline      Kind = "online"
	KindConnected   Kind = "connected"
	KindBlocked     Kind = "blocked"
	KindResolved    Kind = "resolved"
	KindPowered     Kind = "powered"
	KindDiscovering Kind = "discovering"
	KindRSSI        Kind = "rssi"
)

// Event is one recorded lifecycle transition. Value type, safe to copy.
type Event struct {
	Time    time.Time
	Address bluetooth.Address
	Kind    Kind
	Flag    bool
	Details string
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s %s=%t", e.Time.Format(time.RFC3339), e.Address, e.Kind, e.Flag)
	if e.Details != "" {
		s += " (" + e.Details + ")"
	}
	return s
}
