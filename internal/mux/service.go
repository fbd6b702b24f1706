package mux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	// WriteDelay is the coalescing window for keystroke writes.
	WriteDelay time.Duration
	// ResizeDelay is the trailing debounce window for resizes.
	ResizeDelay time.Duration
	// CreateAttempts is the total number of host create attempts.
	CreateAttempts int
	// CreateBackoff is the base delay between attempts; attempt n waits
	// n times this.
	CreateBackoff time.Duration
	// Clock defaults to the system clock; tests inject a virtual one.
	Clock Clock
}

func (o Options) withDefaults() Options {
	if o.WriteDelay == 0 {
		o.WriteDelay = 16 * time.Millisecond
	}
	if o.ResizeDelay == 0 {
		o.ResizeDelay = 150 * time.Millisecond
	}
	if o.CreateAttempts == 0 {
		o.CreateAttempts = 3
	}
	if o.CreateBackoff == 0 {
		o.CreateBackoff = 200 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	return o
}

// Service orchestrates session lifecycle against the process host and
// owns the coalescer, debouncer, registry, and event broadcaster.
//
// One instance is constructed at startup and passed by reference to all
// consumers; Initialize and Destroy are idempotent so tests can cycle
// instances.
type Service struct {
	host    Host
	log     *logging.Logger
	clock   Clock
	metrics *monitoring.Metrics
	opts    Options

	registry *Registry
	events   *Broadcaster
	writes   *Coalescer
	resizes  *Debouncer

	mu          sync.Mutex
	initialized bool
	hostUnsubs  []func()
}

// NewService creates a service bound to the given process host.
func NewService(host Host, log *logging.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		host:     host,
		log:      log,
		clock:    opts.Clock,
		opts:     opts,
		registry: NewRegistry(),
		events:   NewBroadcaster(log),
		writes:   NewCoalescer(host, opts.Clock, log, opts.WriteDelay),
		resizes:  NewDebouncer(host, opts.Clock, log, opts.ResizeDelay),
	}
}

// WithMetrics attaches a metrics collector. Call before Initialize.
func (s *Service) WithMetrics(m *monitoring.Metrics) *Service {
	s.metrics = m
	s.events.metrics = m
	s.writes.metrics = m
	s.resizes.metrics = m
	return s
}

// Initialize registers the four host event listeners and marks the
// service ready. Calling it again while initialized is a no-op with a
// warning, not an error.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.log.Warn("Service already initialized, ignoring")
		return nil
	}

	s.hostUnsubs = []func(){
		s.host.OnData(func(sessionID, payload string) {
			s.events.Data(sessionID, payload)
		}),
		s.host.OnState(func(sessionID string, state State) {
			s.registry.SetState(sessionID, state)
			s.events.State(sessionID, state)
		}),
		s.host.OnExit(func(sessionID string) {
			s.registry.Remove(sessionID)
			s.syncGauge()
			s.events.Exit(sessionID)
		}),
		s.host.OnError(func(sessionID, message string) {
			s.registry.SetState(sessionID, StateError)
			s.events.Error(sessionID, message)
		}),
	}

	s.initialized = true
	s.log.Info("Session multiplexer initialized")
	return nil
}

// Destroy tears the service down: host listeners unregistered, all
// subscriber sets cleared, pending resize timers cancelled, pending
// write buffers flushed best-effort. A subsequent Initialize restores
// full functionality. Destroying an uninitialized service is a no-op.
func (s *Service) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, remove := range s.hostUnsubs {
		remove()
	}
	s.hostUnsubs = nil

	s.events.Clear()
	s.resizes.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.writes.FlushAll(ctx)

	if s.initialized {
		s.log.Info("Session multiplexer destroyed")
	}
	s.initialized = false
}

// Create asks the host for a new session, retrying with linear backoff
// before surfacing a terminal failure. The session id is host-assigned,
// so the call cannot be abandoned mid-flight: a caller that loses
// interest must Kill the returned id.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (string, error) {
	attempts := s.opts.CreateAttempts
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		sessionID, err := s.host.Create(ctx, opts)
		if err == nil {
			s.registry.Put(Session{
				ID:        sessionID,
				Shell:     opts.Shell,
				State:     StateStarting,
				CreatedAt: s.clock.Now(),
				Cwd:       opts.Cwd,
			})
			s.syncGauge()
			if s.metrics != nil {
				s.metrics.SessionsCreated.Inc()
			}
			s.log.Info("Session created",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt),
			)
			return sessionID, nil
		}

		lastErr = err
		s.log.Warn("Session create attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)

		if attempt < attempts {
			if s.metrics != nil {
				s.metrics.CreateRetries.Inc()
			}
			backoff := time.Duration(attempt) * s.opts.CreateBackoff
			if err := s.clock.Sleep(ctx, backoff); err != nil {
				return "", fmt.Errorf("create aborted during backoff: %w", err)
			}
		}
	}

	return "", fmt.Errorf("create failed after %d attempts: %w", attempts, lastErr)
}

// Kill flushes any pending writes for the session, cancels its pending
// resize, then requests host termination. Host errors are rethrown, but
// the local cleanup has already happened so nothing leaks either way.
func (s *Service) Kill(ctx context.Context, sessionID string) error {
	if err := s.writes.Flush(ctx, sessionID); err != nil {
		// Same taxonomy as a timer-driven flush failure: logged,
		// non-fatal, buffer already discarded.
		s.log.Warn("Flush before kill failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	s.resizes.Cancel(sessionID)

	if err := s.host.Kill(ctx, sessionID); err != nil {
		return fmt.Errorf("kill session %s: %w", sessionID, err)
	}

	s.registry.Remove(sessionID)
	s.syncGauge()
	if s.metrics != nil {
		s.metrics.SessionsKilled.Inc()
	}
	s.log.Info("Session killed", zap.String("session_id", sessionID))
	return nil
}

// Write buffers data for the session; the coalescer flushes it to the
// host within one write window. Fire-and-forget by contract.
func (s *Service) Write(sessionID, data string) {
	s.writes.Write(sessionID, data)
}

// Resize schedules a debounced resize; only the last dimensions within
// a window reach the host.
func (s *Service) Resize(sessionID string, cols, rows int) {
	s.resizes.Resize(sessionID, cols, rows)
}

// ChangeDirectory is a passthrough to the host. The registry's cached
// cwd is deliberately not patched here; consumers query explicitly.
func (s *Service) ChangeDirectory(ctx context.Context, sessionID, path string) error {
	return s.host.ChangeDirectory(ctx, sessionID, path)
}

// GetSession is a read-through query: no local cache, always host ground
// truth at some latency cost.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	return s.host.GetSession(ctx, sessionID)
}

// ListSessions is a read-through query against the host.
func (s *Service) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	return s.host.ListSessions(ctx)
}

// Profiles returns the host's launchable shell profiles.
func (s *Service) Profiles(ctx context.Context) ([]ShellProfile, error) {
	return s.host.Profiles(ctx)
}

// InitProfiles forces profile discovery on the host.
func (s *Service) InitProfiles(ctx context.Context) ([]ShellProfile, error) {
	return s.host.InitProfiles(ctx)
}

// OnData subscribes to session output events.
func (s *Service) OnData(fn DataFunc) func() { return s.events.OnData(fn) }

// OnState subscribes to session state transitions.
func (s *Service) OnState(fn StateFunc) func() { return s.events.OnState(fn) }

// OnExit subscribes to session exit events.
func (s *Service) OnExit(fn ExitFunc) func() { return s.events.OnExit(fn) }

// OnError subscribes to host-reported session errors.
func (s *Service) OnError(fn ErrorFunc) func() { return s.events.OnError(fn) }

// Registry exposes the locally cached session view.
func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) syncGauge() {
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.registry.Len()))
	}
}
