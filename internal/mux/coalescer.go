package mux

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
)

// flushTimeout bounds the host call issued by a timer-driven flush,
// which has no caller context to inherit.
const flushTimeout = 5 * time.Second

// Coalescer batches rapid per-session writes into time-windowed flushes.
//
// The window matches a single display-refresh interval: short enough
// that keystroke echo feels instantaneous, long enough to fold a paste
// burst into one host call. Once a timer is scheduled for a session it
// is never reset, which bounds worst-case latency under sustained
// typing.
type Coalescer struct {
	host    Host
	clock   Clock
	log     *logging.Logger
	metrics *monitoring.Metrics
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]*writeBuffer
}

type writeBuffer struct {
	data  []byte
	timer Timer
}

// NewCoalescer creates a coalescer flushing to host after delay.
func NewCoalescer(host Host, clock Clock, log *logging.Logger, delay time.Duration) *Coalescer {
	return &Coalescer{
		host:    host,
		clock:   clock,
		log:     log,
		delay:   delay,
		pending: make(map[string]*writeBuffer),
	}
}

// Write appends data to the session's pending buffer. The first write in
// a window schedules the flush timer; later writes only append, so every
// character written before the flush fires is included, in order.
func (c *Coalescer) Write(sessionID, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.WritesBuffered.Inc()
	}

	if buf, ok := c.pending[sessionID]; ok {
		buf.data = append(buf.data, data...)
		return
	}

	buf := &writeBuffer{data: []byte(data)}
	buf.timer = c.clock.AfterFunc(c.delay, func() {
		c.flushExpired(sessionID)
	})
	c.pending[sessionID] = buf
}

// Flush synchronously sends any pending buffer for the session and
// cancels its timer. Used by kill so no buffered keystrokes are silently
// dropped. A nil error is returned when nothing was pending.
func (c *Coalescer) Flush(ctx context.Context, sessionID string) error {
	data, ok := c.take(sessionID)
	if !ok {
		return nil
	}
	return c.send(ctx, sessionID, data)
}

// FlushAll best-effort-flushes every pending buffer. Failures are
// logged, not returned; destroy must not fail because a dying host
// rejected a trailing write.
func (c *Coalescer) FlushAll(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.Flush(ctx, id); err != nil {
			c.log.Warn("Flush during teardown failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
	}
}

// flushExpired is the timer callback path.
func (c *Coalescer) flushExpired(sessionID string) {
	data, ok := c.take(sessionID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := c.send(ctx, sessionID, data); err != nil {
		// The buffer is already discarded: echo is the renderer's
		// concern and re-buffering stale input would reorder it.
		c.log.Error("Write flush failed",
			zap.String("session_id", sessionID),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
	}
}

// take removes and returns the pending buffer for the session, stopping
// its timer. At most one of the timer path and the explicit-flush path
// gets the data.
func (c *Coalescer) take(sessionID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, ok := c.pending[sessionID]
	if !ok {
		return nil, false
	}
	delete(c.pending, sessionID)
	if buf.timer != nil {
		buf.timer.Stop()
	}
	return buf.data, true
}

func (c *Coalescer) send(ctx context.Context, sessionID string, data []byte) error {
	if err := c.host.Write(ctx, sessionID, string(data)); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordFlush(len(data))
	}
	return nil
}
