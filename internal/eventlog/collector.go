package eventlog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// CollectorMetrics provides lock-free metrics tracking for a Collector.
type CollectorMetrics struct {
	Processed   int64 // events moved into the retained window
	Errors      int64 // unexpected buffer failures
	Overwritten int64 // events lost to window overflow
}

func (m *CollectorMetrics) incrementProcessed() {
	atomic.AddInt64(&m.Processed, 1)
}

func (m *CollectorMetrics) incrementErrors() {
	atomic.AddInt64(&m.Errors, 1)
}

func (m *CollectorMetrics) incrementOverwritten(count uint32) {
	atomic.AddInt64(&m.Overwritten, int64(count))
}

// Reset resets all counters to zero.
func (m *CollectorMetrics) Reset() {
	atomic.StoreInt64(&m.Processed, 0)
	atomic.StoreInt64(&m.Errors, 0)
	atomic.StoreInt64(&m.Overwritten, 0)
}

func (m *CollectorMetrics) snapshot() CollectorMetrics {
	return CollectorMetrics{
		Processed:   atomic.LoadInt64(&m.Processed),
		Errors:      atomic.LoadInt64(&m.Errors),
		Overwritten: atomic.LoadInt64(&m.Overwritten),
	}
}

// Collector drains lifecycle events from a channel into an overlapped ring
// buffer, retaining the most recent window for later inspection. Producers
// stay decoupled: the feeding RingChannel absorbs bursts and the overlapped
// buffer silently drops the oldest retained events under pressure.
//
// All methods are safe for concurrent use.
type Collector struct {
	events  <-chan Event
	buffer  mpmc.RichOverlappedRingBuffer[Event]
	stop    chan struct{}
	done    chan struct{}
	onError func(error)
	metrics CollectorMetrics
	state   uint32 // one of the CollectorState constants
}

const (
	// Collector lifecycle states, transitioned with CAS.
	CollectorStateNotRunning uint32 = iota
	CollectorStateRunning
	CollectorStateStopping

	// MaxWindowSize caps the retained window to guard against accidental
	// misconfiguration.
	MaxWindowSize uint32 = 1024 * 1024
)

// NewCollector creates a collector reading from ch. windowSize bounds the
// retained event window. onError handles unexpected buffer failures; nil
// panics on any such failure.
func NewCollector(ch <-chan Event, windowSize uint32, onError func(error)) (*Collector, error) {
	if ch == nil {
		return nil, fmt.Errorf("event channel cannot be nil")
	}
	if windowSize == 0 {
		return nil, fmt.Errorf("window size must be > 0")
	}
	if windowSize > MaxWindowSize {
		return nil, fmt.Errorf("window size %d exceeds maximum %d", windowSize, MaxWindowSize)
	}
	if onError == nil {
		onError = func(err error) {
			panic(fmt.Sprintf("eventlog.Collector: %v", err))
		}
	}

	return &Collector{
		events:  ch,
		buffer:  mpmc.NewOverlappedRingBuffer[Event](windowSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onError: onError,
		state:   CollectorStateNotRunning,
	}, nil
}

// Start begins collecting. Blocks until the collector goroutine is running
// or the startup times out. Returns an error when already running.
func (c *Collector) Start() error {
	if !atomic.CompareAndSwapUint32(&c.state, CollectorStateNotRunning, CollectorStateRunning) {
		switch atomic.LoadUint32(&c.state) {
		case CollectorStateRunning:
			return fmt.Errorf("collector is already running")
		case CollectorStateStopping:
			return fmt.Errorf("collector is stopping, wait for it to finish")
		default:
			return fmt.Errorf("collector is in unknown state %d", atomic.LoadUint32(&c.state))
		}
	}

	// Fresh channels per start cycle, otherwise a restart would close an
	// already closed stop channel.
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	// Buffered so the goroutine never blocks on the signal even when the
	// startup wait below has already timed out.
	started := make(chan struct{}, 1)

	go func() {
		started <- struct{}{}

		defer func() {
			close(c.done)
			atomic.StoreUint32(&c.state, CollectorStateNotRunning)
		}()
		for {
			select {
			case <-c.stop:
				return
			case ev, ok := <-c.events:
				if !ok {
					return // producer channel closed
				}
				// The overlapped buffer evicts the oldest retained events
				// itself and reports how many.
				overwrites, err := c.buffer.EnqueueM(ev)
				if err != nil {
					c.metrics.incrementErrors()
					c.onError(fmt.Errorf("unexpected buffer enqueue error: %w", err))
					return
				}
				c.metrics.incrementOverwritten(overwrites)
				c.metrics.incrementProcessed()
			}
		}
	}()

	select {
	case <-started:
		return nil
	case <-time.After(1 * time.Second):
		close(c.stop)
		<-c.done
		return fmt.Errorf("collector failed to start within 1s timeout")
	}
}

// Stop stops collection. Stopping a collector that is not running is a
// no-op.
func (c *Collector) Stop() error {
	if !atomic.CompareAndSwapUint32(&c.state, CollectorStateRunning, CollectorStateStopping) {
		switch atomic.LoadUint32(&c.state) {
		case CollectorStateNotRunning:
			return nil
		case CollectorStateStopping:
			// Another caller is stopping, wait alongside it.
		default:
			return fmt.Errorf("collector is in unknown state %d", atomic.LoadUint32(&c.state))
		}
	} else {
		close(c.stop)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		<-c.done // wait out the slow shutdown, state must settle
		return fmt.Errorf("stop completed but exceeded 5s timeout")
	}
}

// State returns the current lifecycle state.
func (c *Collector) State() uint32 {
	return atomic.LoadUint32(&c.state)
}

// GetMetrics returns a copy of the current metrics.
func (c *Collector) GetMetrics() CollectorMetrics {
	return c.metrics.snapshot()
}

// ResetMetrics resets all metric counters.
func (c *Collector) ResetMetrics() {
	c.metrics.Reset()
}

// Consume drains the retained window oldest-first, passing each event to fn.
// It stops on the first fn error and returns how many events fn saw.
func (c *Collector) Consume(fn func(Event) error) (int, error) {
	consumed := 0
	for !c.buffer.IsEmpty() {
		ev, err := c.buffer.Dequeue()
		if err != nil {
			return consumed, fmt.Errorf("buffer dequeue error: %w", err)
		}
		consumed++
		if err := fn(ev); err != nil {
			return consumed, err
		}
	}
	return consumed, nil
}

// Snapshot drains the retained window into a slice, oldest first.
func (c *Collector) Snapshot() ([]Event, error) {
	var events []Event
	_, err := c.Consume(func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}
