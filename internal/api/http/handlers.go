package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ferxalbs/termmux/internal/mux"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	svc *mux.Service
}

// NewHandlers creates a new handler set.
func NewHandlers(svc *mux.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termmux",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.svc.Registry().Len(),
	})
}

type createRequest struct {
	Shell string `json:"shell"`
	Cwd   string `json:"cwd"`
	Cols  int    `json:"cols"`
	Rows  int    `json:"rows"`
}

// CreateSession spawns a new shell session.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sessionID, err := h.svc.Create(c.Request.Context(), mux.CreateOptions{
		Shell: req.Shell,
		Cwd:   req.Cwd,
		Cols:  req.Cols,
		Rows:  req.Rows,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

// ListSessions lists all live sessions from the host.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []mux.SessionInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns one session's host record.
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": info})
}

// KillSession terminates a session.
func (h *Handlers) KillSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.svc.Kill(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": sessionID})
}

type writeRequest struct {
	Data string `json:"data"`
}

// WriteSession buffers input for a session. Accepted immediately; the
// coalescer delivers it within one write window.
func (h *Handlers) WriteSession(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	h.svc.Write(c.Param("id"), req.Data)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type resizeRequest struct {
	Cols int `json:"cols" binding:"required"`
	Rows int `json:"rows" binding:"required"`
}

// ResizeSession schedules a debounced resize.
func (h *Handlers) ResizeSession(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	h.svc.Resize(c.Param("id"), req.Cols, req.Rows)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type chdirRequest struct {
	Path string `json:"path" binding:"required"`
}

// ChangeDirectory drives a cd in the session's shell.
func (h *Handlers) ChangeDirectory(c *gin.Context) {
	var req chdirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.svc.ChangeDirectory(c.Request.Context(), c.Param("id"), req.Path); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListProfiles returns the host's launchable shell profiles.
func (h *Handlers) ListProfiles(c *gin.Context) {
	profiles, err := h.svc.Profiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if profiles == nil {
		profiles = []mux.ShellProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// InitProfiles forces shell profile rediscovery on the host.
func (h *Handlers) InitProfiles(c *gin.Context) {
	profiles, err := h.svc.InitProfiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if profiles == nil {
		profiles = []mux.ShellProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
