package mux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
)

func newTestCoalescer(h *fakeHost, c *fakeClock) *Coalescer {
	return NewCoalescer(h, c, logging.NewNop(), 16*time.Millisecond)
}

func TestCoalescerBatchesWritesInOneWindow(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "a")
	clock.Advance(5 * time.Millisecond)
	co.Write("s1", "b")

	// Nothing flushed before the window elapses.
	assert.Empty(t, host.callsTo("write"))

	clock.Advance(11 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 1)
	assert.Equal(t, "s1", writes[0].sessionID)
	assert.Equal(t, "ab", writes[0].data)
}

func TestCoalescerTimerIsNotResetByLaterWrites(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	// Sustained typing: a write every 10ms must not starve the flush.
	co.Write("s1", "x")
	clock.Advance(10 * time.Millisecond)
	co.Write("s1", "y")

	// 16ms after the first write the original timer fires.
	clock.Advance(6 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 1)
	assert.Equal(t, "xy", writes[0].data)
}

func TestCoalescerPreservesWriteOrder(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	for _, ch := range []string{"h", "e", "l", "l", "o"} {
		co.Write("s1", ch)
	}
	clock.Advance(16 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 1)
	assert.Equal(t, "hello", writes[0].data)
}

func TestCoalescerSessionsAreIndependent(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "one")
	co.Write("s2", "two")
	clock.Advance(16 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 2)
	byID := map[string]string{}
	for _, w := range writes {
		byID[w.sessionID] = w.data
	}
	assert.Equal(t, map[string]string{"s1": "one", "s2": "two"}, byID)
}

func TestCoalescerSeparateWindows(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "first")
	clock.Advance(16 * time.Millisecond)
	co.Write("s1", "second")
	clock.Advance(16 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 2)
	assert.Equal(t, "first", writes[0].data)
	assert.Equal(t, "second", writes[1].data)
}

func TestCoalescerFlushSendsPendingAndStopsTimer(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "buffered")
	require.NoError(t, co.Flush(context.Background(), "s1"))

	writes := host.callsTo("write")
	require.Len(t, writes, 1)
	assert.Equal(t, "buffered", writes[0].data)

	// The timer was cancelled; advancing must not flush again.
	clock.Advance(time.Second)
	assert.Len(t, host.callsTo("write"), 1)
}

func TestCoalescerFlushWithNothingPending(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	require.NoError(t, co.Flush(context.Background(), "absent"))
	assert.Empty(t, host.callsTo("write"))
}

func TestCoalescerDiscardsBufferOnFlushFailure(t *testing.T) {
	host := newFakeHost()
	host.writeErr = errors.New("host gone")
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "lost")
	clock.Advance(16 * time.Millisecond)
	require.Len(t, host.callsTo("write"), 1)

	// The failed payload is not replayed on the next window.
	host.writeErr = nil
	co.Write("s1", "fresh")
	clock.Advance(16 * time.Millisecond)

	writes := host.callsTo("write")
	require.Len(t, writes, 2)
	assert.Equal(t, "fresh", writes[1].data)
}

func TestCoalescerFlushAll(t *testing.T) {
	host := newFakeHost()
	clock := newFakeClock()
	co := newTestCoalescer(host, clock)

	co.Write("s1", "a")
	co.Write("s2", "b")
	co.FlushAll(context.Background())

	assert.Len(t, host.callsTo("write"), 2)
	assert.Equal(t, 0, clock.pendingTimers())
}
