package mux

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
)

// fakeClock is a virtual clock: AfterFunc timers fire when Advance moves
// past their deadline, and Sleep jumps time forward instantly while
// recording the requested duration.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	sleeps []time.Duration
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

// Advance moves the clock forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// hostCall records one command the fake host received.
type hostCall struct {
	method    string
	sessionID string
	data      string
	cols      int
	rows      int
	path      string
}

// fakeHost is an in-memory Host that records commands and lets tests
// script create failures and emit events.
type fakeHost struct {
	mu         sync.Mutex
	calls      []hostCall
	createErrs []error // consumed one per Create call; nil entry = success
	nextID     int
	writeErr   error
	resizeErr  error
	killErr    error
	sessions   map[string]SessionInfo
	profiles   []ShellProfile

	nextSub   int
	dataSubs  map[int]DataFunc
	stateSubs map[int]StateFunc
	exitSubs  map[int]ExitFunc
	errorSubs map[int]ErrorFunc
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		sessions:  make(map[string]SessionInfo),
		dataSubs:  make(map[int]DataFunc),
		stateSubs: make(map[int]StateFunc),
		exitSubs:  make(map[int]ExitFunc),
		errorSubs: make(map[int]ErrorFunc),
	}
}

func (h *fakeHost) Create(ctx context.Context, opts CreateOptions) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hostCall{method: "create"})
	if len(h.createErrs) > 0 {
		err := h.createErrs[0]
		h.createErrs = h.createErrs[1:]
		if err != nil {
			return "", err
		}
	}
	h.nextID++
	id := fmt.Sprintf("sess-%d", h.nextID)
	h.sessions[id] = SessionInfo{
		ID:    id,
		Shell: opts.Shell,
		Cwd:   opts.Cwd,
		Cols:  opts.Cols,
		Rows:  opts.Rows,
		State: StateStarting,
	}
	return id, nil
}

func (h *fakeHost) Write(ctx context.Context, sessionID, data string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hostCall{method: "write", sessionID: sessionID, data: data})
	return h.writeErr
}

func (h *fakeHost) Resize(ctx context.Context, sessionID string, cols, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hostCall{method: "resize", sessionID: sessionID, cols: cols, rows: rows})
	return h.resizeErr
}

func (h *fakeHost) Kill(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hostCall{method: "kill", sessionID: sessionID})
	if h.killErr != nil {
		return h.killErr
	}
	delete(h.sessions, sessionID)
	return nil
}

func (h *fakeHost) ChangeDirectory(ctx context.Context, sessionID, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hostCall{method: "cd", sessionID: sessionID, path: path})
	s, ok := h.sessions[sessionID]
	if !ok {
		return errors.New("session not found: " + sessionID)
	}
	s.Cwd = path
	h.sessions[sessionID] = s
	return nil
}

func (h *fakeHost) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return nil, errors.New("session not found: " + sessionID)
	}
	return &s, nil
}

func (h *fakeHost) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (h *fakeHost) Profiles(ctx context.Context) ([]ShellProfile, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.profiles, nil
}

func (h *fakeHost) InitProfiles(ctx context.Context) ([]ShellProfile, error) {
	return h.Profiles(ctx)
}

func (h *fakeHost) OnData(fn DataFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.dataSubs[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.dataSubs, key)
	}
}

func (h *fakeHost) OnState(fn StateFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.stateSubs[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.stateSubs, key)
	}
}

func (h *fakeHost) OnExit(fn ExitFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.exitSubs[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.exitSubs, key)
	}
}

func (h *fakeHost) OnError(fn ErrorFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.errorSubs[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.errorSubs, key)
	}
}

func (h *fakeHost) emitData(sessionID, payload string) {
	for _, fn := range h.snapshotData() {
		fn(sessionID, payload)
	}
}

func (h *fakeHost) emitState(sessionID string, state State) {
	h.mu.Lock()
	subs := make([]StateFunc, 0, len(h.stateSubs))
	for _, fn := range h.stateSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(sessionID, state)
	}
}

func (h *fakeHost) emitExit(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	subs := make([]ExitFunc, 0, len(h.exitSubs))
	for _, fn := range h.exitSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(sessionID)
	}
}

func (h *fakeHost) emitError(sessionID, message string) {
	h.mu.Lock()
	subs := make([]ErrorFunc, 0, len(h.errorSubs))
	for _, fn := range h.errorSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(sessionID, message)
	}
}

func (h *fakeHost) snapshotData() []DataFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]DataFunc, 0, len(h.dataSubs))
	for _, fn := range h.dataSubs {
		subs = append(subs, fn)
	}
	return subs
}

func (h *fakeHost) recordedCalls() []hostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]hostCall, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *fakeHost) callsTo(method string) []hostCall {
	var out []hostCall
	for _, c := range h.recordedCalls() {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (h *fakeHost) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dataSubs) + len(h.stateSubs) + len(h.exitSubs) + len(h.errorSubs)
}

// newTestService wires a service onto the fake host and clock.
func newTestService(h *fakeHost, c *fakeClock) *Service {
	return NewService(h, logging.NewNop(), Options{Clock: c})
}
