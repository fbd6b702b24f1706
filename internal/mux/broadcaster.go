package mux

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
	"github.com/ferxalbs/termmux/internal/shared/id"
)

// Broadcaster fans host notifications out to registered subscribers over
// four independent channels: data, state, exit, error.
//
// Dispatch iterates a snapshot of the subscriber set, so a callback may
// unsubscribe itself (or any other callback) re-entrantly without
// corrupting iteration. A panicking callback is logged and skipped;
// remaining callbacks in the same dispatch still run. Dispatch is
// synchronous in the host's event goroutine, so for a given session all
// current subscribers see one event before the next is delivered.
type Broadcaster struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu        sync.RWMutex
	dataSubs  map[id.SubscriptionID]DataFunc
	stateSubs map[id.SubscriptionID]StateFunc
	exitSubs  map[id.SubscriptionID]ExitFunc
	errorSubs map[id.SubscriptionID]ErrorFunc
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log *logging.Logger) *Broadcaster {
	return &Broadcaster{
		log:       log,
		dataSubs:  make(map[id.SubscriptionID]DataFunc),
		stateSubs: make(map[id.SubscriptionID]StateFunc),
		exitSubs:  make(map[id.SubscriptionID]ExitFunc),
		errorSubs: make(map[id.SubscriptionID]ErrorFunc),
	}
}

// OnData registers a data subscriber. The returned func removes it;
// calling it twice is a harmless no-op.
func (b *Broadcaster) OnData(fn DataFunc) func() {
	key := id.NewSubscriptionID()
	b.mu.Lock()
	b.dataSubs[key] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.dataSubs, key)
		b.mu.Unlock()
	}
}

// OnState registers a state subscriber.
func (b *Broadcaster) OnState(fn StateFunc) func() {
	key := id.NewSubscriptionID()
	b.mu.Lock()
	b.stateSubs[key] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.stateSubs, key)
		b.mu.Unlock()
	}
}

// OnExit registers an exit subscriber.
func (b *Broadcaster) OnExit(fn ExitFunc) func() {
	key := id.NewSubscriptionID()
	b.mu.Lock()
	b.exitSubs[key] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.exitSubs, key)
		b.mu.Unlock()
	}
}

// OnError registers an error subscriber.
func (b *Broadcaster) OnError(fn ErrorFunc) func() {
	key := id.NewSubscriptionID()
	b.mu.Lock()
	b.errorSubs[key] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.errorSubs, key)
		b.mu.Unlock()
	}
}

// Data dispatches a data event to all current data subscribers.
func (b *Broadcaster) Data(sessionID, payload string) {
	b.mu.RLock()
	subs := make([]DataFunc, 0, len(b.dataSubs))
	for _, fn := range b.dataSubs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.invoke("data", func() { fn(sessionID, payload) })
	}
	b.record("data")
}

// State dispatches a state-change event.
func (b *Broadcaster) State(sessionID string, state State) {
	b.mu.RLock()
	subs := make([]StateFunc, 0, len(b.stateSubs))
	for _, fn := range b.stateSubs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.invoke("state", func() { fn(sessionID, state) })
	}
	b.record("state")
}

// Exit dispatches an exit event.
func (b *Broadcaster) Exit(sessionID string) {
	b.mu.RLock()
	subs := make([]ExitFunc, 0, len(b.exitSubs))
	for _, fn := range b.exitSubs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.invoke("exit", func() { fn(sessionID) })
	}
	b.record("exit")
}

// Error dispatches a host-reported session error. It is delivered as
// data, never thrown; whether to kill the session afterward is the
// consumer's call.
func (b *Broadcaster) Error(sessionID, message string) {
	b.mu.RLock()
	subs := make([]ErrorFunc, 0, len(b.errorSubs))
	for _, fn := range b.errorSubs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.invoke("error", func() { fn(sessionID, message) })
	}
	b.record("error")
}

// Clear removes all subscribers on every channel.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dataSubs = make(map[id.SubscriptionID]DataFunc)
	b.stateSubs = make(map[id.SubscriptionID]StateFunc)
	b.exitSubs = make(map[id.SubscriptionID]ExitFunc)
	b.errorSubs = make(map[id.SubscriptionID]ErrorFunc)
}

// invoke runs one callback with panic isolation.
func (b *Broadcaster) invoke(channel string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.SubscriberPanics.Inc()
			}
			b.log.Error("Subscriber callback panicked",
				zap.String("channel", channel),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

func (b *Broadcaster) record(channel string) {
	if b.metrics != nil {
		b.metrics.RecordEvent(channel)
	}
}
