package mux

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
)

// Debouncer collapses bursts of resize requests into a single trailing
// host call per session. Only the last dimensions requested within a
// window are ever transmitted; earlier ones are superseded, which is the
// point, not a loss.
//
// The window is long enough to absorb continuous drag-resize events and
// short enough that the terminal reflows promptly once dragging stops.
type Debouncer struct {
	host    Host
	clock   Clock
	log     *logging.Logger
	metrics *monitoring.Metrics
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]*resizeRequest
}

type resizeRequest struct {
	cols  int
	rows  int
	timer Timer
}

// NewDebouncer creates a debouncer issuing host resizes after delay.
func NewDebouncer(host Host, clock Clock, log *logging.Logger, delay time.Duration) *Debouncer {
	return &Debouncer{
		host:    host,
		clock:   clock,
		log:     log,
		delay:   delay,
		pending: make(map[string]*resizeRequest),
	}
}

// Resize records (cols, rows) as the session's pending request and
// restarts its debounce timer.
func (d *Debouncer) Resize(sessionID string, cols, rows int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.ResizeRequests.Inc()
	}

	if req, ok := d.pending[sessionID]; ok {
		req.timer.Stop()
		req.cols = cols
		req.rows = rows
		req.timer = d.clock.AfterFunc(d.delay, func() {
			d.fire(sessionID)
		})
		return
	}

	req := &resizeRequest{cols: cols, rows: rows}
	req.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(sessionID)
	})
	d.pending[sessionID] = req
}

// Cancel drops any pending resize for the session. A killed session has
// no need to resize.
func (d *Debouncer) Cancel(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, ok := d.pending[sessionID]
	if !ok {
		return false
	}
	req.timer.Stop()
	delete(d.pending, sessionID)
	return true
}

// CancelAll drops every pending resize.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, req := range d.pending {
		req.timer.Stop()
		delete(d.pending, id)
	}
}

func (d *Debouncer) fire(sessionID string) {
	d.mu.Lock()
	req, ok := d.pending[sessionID]
	if ok {
		delete(d.pending, sessionID)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := d.host.Resize(ctx, sessionID, req.cols, req.rows); err != nil {
		// Non-fatal: the next real resize supersedes this one anyway.
		d.log.Error("Resize flush failed",
			zap.String("session_id", sessionID),
			zap.Int("cols", req.cols),
			zap.Int("rows", req.rows),
			zap.Error(err),
		)
		return
	}
	if d.metrics != nil {
		d.metrics.ResizeFlushes.Inc()
	}
}
