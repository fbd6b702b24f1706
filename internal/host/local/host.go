package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/mux"
)

// Host spawns and drives shell processes on PTYs in this process.
type Host struct {
	log *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session

	subMu     sync.RWMutex
	nextSub   int
	dataSubs  map[int]mux.DataFunc
	stateSubs map[int]mux.StateFunc
	exitSubs  map[int]mux.ExitFunc
	errorSubs map[int]mux.ErrorFunc

	profMu   sync.Mutex
	profiles []mux.ShellProfile
}

type session struct {
	id        string
	shell     string
	cols      int
	rows      int
	startedAt time.Time
	cmd       *exec.Cmd
	ptmx      *os.File

	mu     sync.Mutex
	cwd    string
	state  mux.State
	closed bool
}

// New creates an empty local host.
func New(log *logging.Logger) *Host {
	return &Host{
		log:       log,
		sessions:  make(map[string]*session),
		dataSubs:  make(map[int]mux.DataFunc),
		stateSubs: make(map[int]mux.StateFunc),
		exitSubs:  make(map[int]mux.ExitFunc),
		errorSubs: make(map[int]mux.ErrorFunc),
	}
}

// Create spawns a shell on a new PTY and returns the assigned session id.
func (h *Host) Create(ctx context.Context, opts mux.CreateOptions) (string, error) {
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd = os.Getenv("HOME")
		if cwd == "" {
			cwd = "/tmp"
		}
	}

	cols := opts.Cols
	if cols <= 0 {
		cols = 80
	}
	rows := opts.Rows
	if rows <= 0 {
		rows = 24
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &session{
		id:        uuid.NewString(),
		shell:     shell,
		cwd:       cwd,
		cols:      cols,
		rows:      rows,
		startedAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		state:     mux.StateStarting,
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	go h.readOutput(s)
	go h.monitorProcess(s)

	h.log.Info("Shell session started",
		zap.String("session_id", s.id),
		zap.String("shell", shell),
		zap.Int("pid", cmd.Process.Pid),
	)
	return s.id, nil
}

// readOutput streams PTY output into the data channel. The readiness
// state event goes out first so subscribers never see data from a
// session still reported as starting.
func (h *Host) readOutput(s *session) {
	s.mu.Lock()
	if s.state == mux.StateStarting {
		s.state = mux.StateActive
	}
	s.mu.Unlock()
	h.emitState(s.id, mux.StateActive)

	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			h.emitData(s.id, string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// monitorProcess waits for exit, cleans up, and drives the terminal
// state transition.
func (h *Host) monitorProcess(s *session) {
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	killed := s.closed
	s.closed = true
	s.mu.Unlock()
	s.ptmx.Close()

	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	if waitErr != nil && !killed {
		s.mu.Lock()
		s.state = mux.StateError
		s.mu.Unlock()
		h.emitState(s.id, mux.StateError)
		h.emitError(s.id, waitErr.Error())
	} else {
		s.mu.Lock()
		s.state = mux.StateExited
		s.mu.Unlock()
		h.emitState(s.id, mux.StateExited)
	}
	h.emitExit(s.id)
}

// Write sends input to the session's PTY.
func (h *Host) Write(ctx context.Context, sessionID, data string) error {
	s, err := h.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session is closed: %s", sessionID)
	}

	_, err = s.ptmx.Write([]byte(data))
	return err
}

// Resize changes the PTY dimensions.
func (h *Host) Resize(ctx context.Context, sessionID string, cols, rows int) error {
	s, err := h.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session is closed: %s", sessionID)
	}
	s.cols = cols
	s.rows = rows
	return pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Kill terminates the session process. The monitor goroutine observes
// the exit and emits the state/exit events.
func (h *Host) Kill(ctx context.Context, sessionID string) error {
	s, err := h.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.ptmx.Close()
	return nil
}

// ChangeDirectory drives a cd in the running shell and updates the
// host's own cwd record.
func (h *Host) ChangeDirectory(ctx context.Context, sessionID, path string) error {
	s, err := h.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session is closed: %s", sessionID)
	}

	if _, err := s.ptmx.Write([]byte(fmt.Sprintf("cd %q\n", path))); err != nil {
		return err
	}

	s.mu.Lock()
	s.cwd = path
	s.mu.Unlock()
	return nil
}

// GetSession returns the host's record for the session.
func (h *Host) GetSession(ctx context.Context, sessionID string) (*mux.SessionInfo, error) {
	s, err := h.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	info := s.info()
	return &info, nil
}

// ListSessions returns records for every live session.
func (h *Host) ListSessions(ctx context.Context) ([]mux.SessionInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]mux.SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s.info())
	}
	return out, nil
}

func (h *Host) lookup(sessionID string) (*session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return s, nil
}

func (s *session) info() mux.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mux.SessionInfo{
		ID:        s.id,
		Shell:     s.shell,
		Cwd:       s.cwd,
		Cols:      s.cols,
		Rows:      s.rows,
		State:     s.state,
		StartedAt: s.startedAt,
	}
}

// Close kills every live session. Used at shutdown.
func (h *Host) Close() error {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		if err := h.Kill(context.Background(), id); err != nil {
			h.log.Warn("Failed to kill session during shutdown",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (h *Host) OnData(fn mux.DataFunc) func() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.dataSubs[key] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.dataSubs, key)
	}
}

func (h *Host) OnState(fn mux.StateFunc) func() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.stateSubs[key] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.stateSubs, key)
	}
}

func (h *Host) OnExit(fn mux.ExitFunc) func() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.exitSubs[key] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.exitSubs, key)
	}
}

func (h *Host) OnError(fn mux.ErrorFunc) func() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.nextSub++
	key := h.nextSub
	h.errorSubs[key] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.errorSubs, key)
	}
}

func (h *Host) emitData(sessionID, payload string) {
	h.subMu.RLock()
	subs := make([]mux.DataFunc, 0, len(h.dataSubs))
	for _, fn := range h.dataSubs {
		subs = append(subs, fn)
	}
	h.subMu.RUnlock()
	for _, fn := range subs {
		fn(sessionID, payload)
	}
}

func (h *Host) emitState(sessionID string, state mux.State) {
	h.subMu.RLock()
	subs := make([]mux.StateFunc, 0, len(h.stateSubs))
	for _, fn := range h.stateSubs {
		subs = append(subs, fn)
	}
	h.subMu.RUnlock()
	for _, fn := range subs {
		fn(sessionID, state)
	}
}

func (h *Host) emitExit(sessionID string) {
	h.subMu.RLock()
	subs := make([]mux.ExitFunc, 0, len(h.exitSubs))
	for _, fn := range h.exitSubs {
		subs = append(subs, fn)
	}
	h.subMu.RUnlock()
	for _, fn := range subs {
		fn(sessionID)
	}
}

func (h *Host) emitError(sessionID, message string) {
	h.subMu.RLock()
	subs := make([]mux.ErrorFunc, 0, len(h.errorSubs))
	for _, fn := range h.errorSubs {
		subs = append(subs, fn)
	}
	h.subMu.RUnlock()
	for _, fn := range subs {
		fn(sessionID, message)
	}
}
