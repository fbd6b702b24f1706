package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker while closed.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenMax is the number of probe requests allowed in half-open
	// state; that many consecutive successes close the breaker again.
	HalfOpenMax uint32
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	requests  uint32
	openedAt  time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 10 * time.Second
	}
	if settings.HalfOpenMax == 0 {
		settings.HalfOpenMax = 1
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// Execute runs the given request if the circuit breaker accepts it
func (b *Breaker) Execute(req func() error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := req()
	b.afterRequest(err == nil)
	return err
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.requests >= b.settings.HalfOpenMax {
			return ErrTooManyRequests
		}
		b.requests++
	}
	return nil
}

func (b *Breaker) afterRequest(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)

	if !success {
		b.failures++
		b.successes = 0
		switch state {
		case StateClosed:
			if b.failures >= b.settings.FailureThreshold {
				b.setState(StateOpen, now)
			}
		case StateHalfOpen:
			// A failed probe reopens immediately.
			b.setState(StateOpen, now)
		}
		return
	}

	b.failures = 0
	if state == StateHalfOpen {
		b.successes++
		if b.successes >= b.settings.HalfOpenMax {
			b.setState(StateClosed, now)
		}
	}
}

// currentState transitions open -> half-open after the cooldown elapses.
// Callers must hold b.mu.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.Cooldown {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.failures = 0
	b.successes = 0
	b.requests = 0
	if state == StateOpen {
		b.openedAt = now
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
