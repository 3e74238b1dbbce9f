package governor

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// listenerSet is a small identity-keyed registry shared by all governor
// kinds. Listeners are compared by interface identity, so callers should
// register pointer implementations if they intend to remove them later.
type listenerSet[L comparable] struct {
	mu        sync.Mutex
	listeners []L
}

func (s *listenerSet[L]) add(listener L) {
	var zero L
	if listener == zero {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *listenerSet[L]) remove(listener L) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// snapshot copies the registry so delivery never holds the mutex across
// listener callbacks.
func (s *listenerSet[L]) snapshot() []L {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]L, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// notifyAll delivers fn to every listener in registration order. A failing
// listener is recovered and logged; it never stops delivery to the rest and
// never reaches governor state.
func notifyAll[L comparable](logger *logrus.Entry, kind string, set *listenerSet[L], fn func(L)) {
	for _, listener := range set.snapshot() {
		notifyOne(logger, kind, listener, fn)
	}
}

func notifyOne[L any](logger *logrus.Entry, kind string, listener L, fn func(L)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Execution error of a %s listener: %v", kind, r)
		}
	}()
	fn(listener)
}
