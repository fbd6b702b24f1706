package remote

import (
	"time"

	"github.com/ferxalbs/termmux/internal/mux"
)

// Envelope kinds.
const (
	typeRequest  = "request"
	typeResponse = "response"
	typeEvent    = "event"
)

// Commands the client sends.
const (
	cmdCreate       = "create"
	cmdWrite        = "write"
	cmdResize       = "resize"
	cmdKill         = "kill"
	cmdChdir        = "chdir"
	cmdGetSession   = "get_session"
	cmdListSessions = "list_sessions"
	cmdProfiles     = "profiles"
	cmdInitProfiles = "init_profiles"
)

// Events the host pushes.
const (
	eventData  = "data"
	eventState = "state"
	eventExit  = "exit"
	eventError = "error"
)

// envelope is the single wire frame. Requests set ID+Command plus the
// command's fields; responses echo the ID and set OK/Error plus result
// fields; events set Event+SessionID plus the event's fields.
type envelope struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Command string `json:"command,omitempty"`
	Event   string `json:"event,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Path      string `json:"path,omitempty"`
	Shell     string `json:"shell,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`

	OK       bool            `json:"ok,omitempty"`
	Error    string          `json:"error,omitempty"`
	Session  *sessionRecord  `json:"session,omitempty"`
	Sessions []sessionRecord `json:"sessions,omitempty"`
	Profiles []profileRecord `json:"profiles,omitempty"`
}

// sessionRecord is the host's session descriptor on the wire.
type sessionRecord struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	Cwd       string    `json:"cwd,omitempty"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

func (r sessionRecord) toInfo() mux.SessionInfo {
	return mux.SessionInfo{
		ID:        r.ID,
		Shell:     r.Shell,
		Cwd:       r.Cwd,
		Cols:      r.Cols,
		Rows:      r.Rows,
		State:     mux.State(r.State),
		StartedAt: r.StartedAt,
	}
}

// profileRecord is a shell profile on the wire.
type profileRecord struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (r profileRecord) toProfile() mux.ShellProfile {
	return mux.ShellProfile{
		Name:    r.Name,
		Command: r.Command,
		Args:    r.Args,
		Env:     r.Env,
	}
}
