package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	var got []string
	b.OnData(func(id, payload string) { got = append(got, "first:"+payload) })
	b.OnData(func(id, payload string) { got = append(got, "second:"+payload) })

	b.Data("s1", "hello")

	assert.ElementsMatch(t, []string{"first:hello", "second:hello"}, got)
}

func TestBroadcasterChannelsAreIndependent(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	var states []State
	var exits, errs []string
	b.OnState(func(id string, s State) { states = append(states, s) })
	b.OnExit(func(id string) { exits = append(exits, id) })
	b.OnError(func(id, msg string) { errs = append(errs, msg) })

	b.State("s1", StateActive)
	b.Exit("s1")
	b.Error("s1", "boom")
	b.Data("s1", "ignored by these subscribers")

	assert.Equal(t, []State{StateActive}, states)
	assert.Equal(t, []string{"s1"}, exits)
	assert.Equal(t, []string{"boom"}, errs)
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	calls := 0
	remove := b.OnExit(func(id string) { calls++ })

	b.Exit("s1")
	remove()
	b.Exit("s1")

	assert.Equal(t, 1, calls)
}

func TestBroadcasterDoubleUnsubscribeIsNoop(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	remove := b.OnData(func(id, payload string) {})
	remove()
	assert.NotPanics(t, func() { remove() })
}

func TestBroadcasterReentrantUnsubscribeDuringDispatch(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	var selfCalls, otherCalls int
	var removeSelf func()
	removeSelf = b.OnData(func(id, payload string) {
		selfCalls++
		removeSelf()
	})
	b.OnData(func(id, payload string) { otherCalls++ })

	// The self-removing callback must not disturb the other subscriber
	// in the same dispatch.
	require.NotPanics(t, func() { b.Data("s1", "x") })
	assert.Equal(t, 1, selfCalls)
	assert.Equal(t, 1, otherCalls)

	b.Data("s1", "y")
	assert.Equal(t, 1, selfCalls)
	assert.Equal(t, 2, otherCalls)
}

func TestBroadcasterPanicIsolation(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	survived := 0
	b.OnData(func(id, payload string) { panic("subscriber bug") })
	b.OnData(func(id, payload string) { survived++ })
	b.OnData(func(id, payload string) { survived++ })

	require.NotPanics(t, func() { b.Data("s1", "x") })
	assert.Equal(t, 2, survived)
}

func TestBroadcasterClearRemovesEverything(t *testing.T) {
	b := NewBroadcaster(logging.NewNop())

	calls := 0
	b.OnData(func(id, payload string) { calls++ })
	b.OnState(func(id string, s State) { calls++ })
	b.OnExit(func(id string) { calls++ })
	b.OnError(func(id, msg string) { calls++ })

	b.Clear()
	b.Data("s1", "x")
	b.State("s1", StateActive)
	b.Exit("s1")
	b.Error("s1", "e")

	assert.Equal(t, 0, calls)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateStarting.Terminal())
	assert.False(t, StateActive.Terminal())
	assert.True(t, StateExited.Terminal())
	assert.True(t, StateError.Terminal())
}
