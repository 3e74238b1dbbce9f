package governor

import (
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// valueHeaderSize is the length prefix in front of every buffered record.
const valueHeaderSize = 4

// ValueStream is a bounded capture of inbound characteristic values for
// pull-style consumers. Records are framed with a length prefix inside a
// byte ring buffer; when space runs out the oldest records are dropped so a
// slow reader never blocks the notification path.
type ValueStream struct {
	mu      sync.Mutex
	buf     *ringbuffer.RingBuffer
	records int
	dropped uint64
}

// NewValueStream creates a stream buffering up to capacity bytes of framed
// records.
func NewValueStream(capacity int) *ValueStream {
	if capacity < valueHeaderSize+1 {
		capacity = valueHeaderSize + 1
	}
	return &ValueStream{buf: ringbuffer.New(capacity)}
}

// Push appends a value, evicting oldest records until it fits. Values larger
// than the whole buffer can never fit and are rejected.
func (s *ValueStream) Push(value []byte) bool {
	need := len(value) + valueHeaderSize

	s.mu.Lock()
	defer s.mu.Unlock()

	if need > s.buf.Capacity() {
		s.dropped++
		return false
	}
	for s.buf.Free() < need {
		s.discardLocked()
	}

	var header [valueHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(value)))
	s.buf.Write(header[:])
	if len(value) > 0 {
		s.buf.Write(value)
	}
	s.records++
	return true
}

// Next pops the oldest buffered value.
func (s *ValueStream) Next() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

// Drain pops every buffered value, oldest first.
func (s *ValueStream) Drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]byte
	for {
		value, ok := s.nextLocked()
		if !ok {
			return out
		}
		out = append(out, value)
	}
}

// Len returns the number of buffered records.
func (s *ValueStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Dropped returns how many records have been evicted or rejected so far.
func (s *ValueStream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// nextLocked reads one framed record. The record accounting guarantees the
// buffer holds complete frames, so short reads cannot happen.
func (s *ValueStream) nextLocked() ([]byte, bool) {
	if s.records == 0 {
		return nil, false
	}
	var header [valueHeaderSize]byte
	s.buf.TryRead(header[:])
	size := binary.BigEndian.Uint32(header[:])

	value := make([]byte, size)
	if size > 0 {
		s.buf.TryRead(value)
	}
	s.records--
	return value, true
}

func (s *ValueStream) discardLocked() {
	if _, ok := s.nextLocked(); ok {
		s.dropped++
	}
}
