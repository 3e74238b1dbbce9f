package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingChannel_SendDropsOldest(t *testing.T) {
	rc := NewRingChannel[int](3)

	for i := 1; i <= 5; i++ {
		rc.Send(i)
	}

	var got []int
	for len(rc.C()) > 0 {
		got = append(got, <-rc.C())
	}
	assert.Equal(t, []int{3, 4, 5}, got)

	metrics := rc.GetMetrics()
	assert.Equal(t, int64(5), metrics.Written)
	assert.Equal(t, int64(2), metrics.Overwritten)
}

func TestRingChannel_TrySendRefusesWhenFull(t *testing.T) {
	rc := NewRingChannel[int](2)

	require.True(t, rc.TrySend(1))
	require.True(t, rc.TrySend(2))
	assert.False(t, rc.TrySend(3))

	metrics := rc.GetMetrics()
	assert.Equal(t, int64(2), metrics.Written)
	assert.Equal(t, int64(0), metrics.Overwritten, "TrySend never displaces")
}

func TestRingChannel_ReceiveTracksProcessed(t *testing.T) {
	rc := NewRingChannel[string](4)
	rc.Send("a")
	rc.Send("b")

	v, ok := rc.Receive()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = rc.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = rc.TryReceive()
	assert.False(t, ok)

	assert.Equal(t, int64(2), rc.GetMetrics().Processed)
}

func TestRingChannel_CloseEndsRange(t *testing.T) {
	rc := NewRingChannel[int](4)
	rc.Send(1)
	rc.Send(2)
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)

	_, ok := rc.Receive()
	assert.False(t, ok)
}

func TestRingChannel_LenCap(t *testing.T) {
	rc := NewRingChannel[int](8)
	assert.Equal(t, 0, rc.Len())
	assert.Equal(t, 8, rc.Cap())

	rc.Send(1)
	assert.Equal(t, 1, rc.Len())
}

func TestRingChannel_InvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { NewRingChannel[int](0) })
	assert.Panics(t, func() { NewRingChannel[int](-1) })
}
