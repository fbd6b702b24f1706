package mux

import (
	"context"
	"time"
)

// State is a session's lifecycle state. Transitions are driven
// exclusively by host-emitted events, never inferred locally.
type State string

const (
	StateStarting State = "starting"
	StateActive   State = "active"
	StateExited   State = "exited"
	StateError    State = "error"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateExited || s == StateError
}

// Session is the registry's descriptor of one interactive shell instance.
type Session struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Cwd       string    `json:"cwd,omitempty"`
}

// SessionInfo is the host's view of a session, returned by read-through
// queries.
type SessionInfo struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	Cwd       string    `json:"cwd,omitempty"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// ShellProfile describes a launchable shell. Profiles are sourced from
// the process host and are read-only here.
type ShellProfile struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// CreateOptions are the caller-supplied parameters for a new session.
// Zero values let the host pick its defaults.
type CreateOptions struct {
	Shell string `json:"shell,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
	Cols  int    `json:"cols,omitempty"`
	Rows  int    `json:"rows,omitempty"`
}

// Subscriber callback signatures, one per event channel.
type (
	DataFunc  func(sessionID, payload string)
	StateFunc func(sessionID string, state State)
	ExitFunc  func(sessionID string)
	ErrorFunc func(sessionID, message string)
)

// HostEvents is the process host's notification surface. Each
// registration returns a removal func; calling it twice is a no-op.
type HostEvents interface {
	OnData(fn DataFunc) (remove func())
	OnState(fn StateFunc) (remove func())
	OnExit(fn ExitFunc) (remove func())
	OnError(fn ErrorFunc) (remove func())
}

// Host is the process host contract this core consumes. The host owns
// process/PTY spawning; session ids are host-assigned.
type Host interface {
	Create(ctx context.Context, opts CreateOptions) (string, error)
	Write(ctx context.Context, sessionID, data string) error
	Resize(ctx context.Context, sessionID string, cols, rows int) error
	Kill(ctx context.Context, sessionID string) error
	ChangeDirectory(ctx context.Context, sessionID, path string) error
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	Profiles(ctx context.Context) ([]ShellProfile, error)
	InitProfiles(ctx context.Context) ([]ShellProfile, error)

	HostEvents
}
