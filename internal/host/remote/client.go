package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
	"github.com/ferxalbs/termmux/internal/infrastructure/resilience"
	"github.com/ferxalbs/termmux/internal/mux"
	"github.com/ferxalbs/termmux/internal/shared/id"
)

const defaultCallTimeout = 10 * time.Second

// Client is a mux.Host that forwards every command to a remote host
// over one WebSocket connection and fans its pushed events back out.
type Client struct {
	log     *logging.Logger
	conn    *websocket.Conn
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	timeout time.Duration

	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[id.RequestID]chan envelope

	subMu     sync.RWMutex
	nextSub   int
	dataSubs  map[int]mux.DataFunc
	stateSubs map[int]mux.StateFunc
	exitSubs  map[int]mux.ExitFunc
	errorSubs map[int]mux.ErrorFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the remote host and starts the read loop.
func Dial(ctx context.Context, addr string, log *logging.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to process host at %s: %w", addr, err)
	}

	c := &Client{
		log:     log,
		conn:    conn,
		timeout: defaultCallTimeout,
		pending: make(map[id.RequestID]chan envelope),

		dataSubs:  make(map[int]mux.DataFunc),
		stateSubs: make(map[int]mux.StateFunc),
		exitSubs:  make(map[int]mux.ExitFunc),
		errorSubs: make(map[int]mux.ErrorFunc),
		closed:    make(chan struct{}),
	}

	c.breaker = resilience.New("process-host", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         15 * time.Second,
		HalfOpenMax:      2,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	go c.readLoop()

	log.Info("Connected to process host", zap.String("addr", addr))
	return c, nil
}

// WithMetrics attaches host-call instrumentation.
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Close tears down the connection. Pending calls fail with a closed
// connection error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// readLoop routes incoming envelopes: responses to their waiting
// caller, events to the registered listeners.
func (c *Client) readLoop() {
	defer c.failPending()
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Error("Process host connection lost", zap.Error(err))
			}
			return
		}

		switch env.Type {
		case typeResponse:
			c.deliverResponse(env)
		case typeEvent:
			c.dispatchEvent(env)
		default:
			c.log.Warn("Unexpected envelope type from host", zap.String("type", env.Type))
		}
	}
}

func (c *Client) deliverResponse(env envelope) {
	reqID := id.RequestID(env.ID)

	c.pendMu.Lock()
	ch, ok := c.pending[reqID]
	if ok {
		delete(c.pending, reqID)
	}
	c.pendMu.Unlock()

	if !ok {
		c.log.Warn("Response for unknown request", zap.String("request_id", env.ID))
		return
	}
	ch <- env
}

func (c *Client) dispatchEvent(env envelope) {
	switch env.Event {
	case eventData:
		c.subMu.RLock()
		subs := make([]mux.DataFunc, 0, len(c.dataSubs))
		for _, fn := range c.dataSubs {
			subs = append(subs, fn)
		}
		c.subMu.RUnlock()
		for _, fn := range subs {
			fn(env.SessionID, env.Data)
		}
	case eventState:
		c.subMu.RLock()
		subs := make([]mux.StateFunc, 0, len(c.stateSubs))
		for _, fn := range c.stateSubs {
			subs = append(subs, fn)
		}
		c.subMu.RUnlock()
		for _, fn := range subs {
			fn(env.SessionID, mux.State(env.State))
		}
	case eventExit:
		c.subMu.RLock()
		subs := make([]mux.ExitFunc, 0, len(c.exitSubs))
		for _, fn := range c.exitSubs {
			subs = append(subs, fn)
		}
		c.subMu.RUnlock()
		for _, fn := range subs {
			fn(env.SessionID)
		}
	case eventError:
		c.subMu.RLock()
		subs := make([]mux.ErrorFunc, 0, len(c.errorSubs))
		for _, fn := range c.errorSubs {
			subs = append(subs, fn)
		}
		c.subMu.RUnlock()
		for _, fn := range subs {
			fn(env.SessionID, env.Message)
		}
	default:
		c.log.Warn("Unknown event from host", zap.String("event", env.Event))
	}
}

// failPending wakes every in-flight call with an error response once
// the connection is gone.
func (c *Client) failPending() {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	for reqID, ch := range c.pending {
		delete(c.pending, reqID)
		ch <- envelope{Type: typeResponse, ID: string(reqID), Error: "connection to process host closed"}
	}
}

// call performs one request/response round trip through the breaker.
func (c *Client) call(ctx context.Context, req envelope) (envelope, error) {
	start := time.Now()
	var resp envelope
	err := c.breaker.Execute(func() error {
		var execErr error
		resp, execErr = c.roundTrip(ctx, req)
		return execErr
	})

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordHostCall(req.Command, status, time.Since(start))
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req envelope) (envelope, error) {
	req.Type = typeRequest
	reqID := id.NewRequestID()
	req.ID = string(reqID)

	// Buffered so a late response never blocks the read loop.
	ch := make(chan envelope, 1)
	c.pendMu.Lock()
	c.pending[reqID] = ch
	c.pendMu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendMu.Lock()
		delete(c.pending, reqID)
		c.pendMu.Unlock()
		return envelope{}, fmt.Errorf("failed to send %s command: %w", req.Command, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return envelope{}, fmt.Errorf("%s command failed: %s", req.Command, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.pendMu.Lock()
		delete(c.pending, reqID)
		c.pendMu.Unlock()
		return envelope{}, ctx.Err()
	case <-timer.C:
		c.pendMu.Lock()
		delete(c.pending, reqID)
		c.pendMu.Unlock()
		return envelope{}, fmt.Errorf("%s command timed out after %s", req.Command, timeout)
	}
}

func (c *Client) Create(ctx context.Context, opts mux.CreateOptions) (string, error) {
	resp, err := c.call(ctx, envelope{
		Command: cmdCreate,
		Shell:   opts.Shell,
		Cwd:     opts.Cwd,
		Cols:    opts.Cols,
		Rows:    opts.Rows,
	})
	if err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("host returned no session id")
	}
	return resp.SessionID, nil
}

func (c *Client) Write(ctx context.Context, sessionID, data string) error {
	_, err := c.call(ctx, envelope{Command: cmdWrite, SessionID: sessionID, Data: data})
	return err
}

func (c *Client) Resize(ctx context.Context, sessionID string, cols, rows int) error {
	_, err := c.call(ctx, envelope{Command: cmdResize, SessionID: sessionID, Cols: cols, Rows: rows})
	return err
}

func (c *Client) Kill(ctx context.Context, sessionID string) error {
	_, err := c.call(ctx, envelope{Command: cmdKill, SessionID: sessionID})
	return err
}

func (c *Client) ChangeDirectory(ctx context.Context, sessionID, path string) error {
	_, err := c.call(ctx, envelope{Command: cmdChdir, SessionID: sessionID, Path: path})
	return err
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*mux.SessionInfo, error) {
	resp, err := c.call(ctx, envelope{Command: cmdGetSession, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	info := resp.Session.toInfo()
	return &info, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]mux.SessionInfo, error) {
	resp, err := c.call(ctx, envelope{Command: cmdListSessions})
	if err != nil {
		return nil, err
	}
	out := make([]mux.SessionInfo, 0, len(resp.Sessions))
	for _, rec := range resp.Sessions {
		out = append(out, rec.toInfo())
	}
	return out, nil
}

func (c *Client) Profiles(ctx context.Context) ([]mux.ShellProfile, error) {
	return c.profiles(ctx, cmdProfiles)
}

func (c *Client) InitProfiles(ctx context.Context) ([]mux.ShellProfile, error) {
	return c.profiles(ctx, cmdInitProfiles)
}

func (c *Client) profiles(ctx context.Context, command string) ([]mux.ShellProfile, error) {
	resp, err := c.call(ctx, envelope{Command: command})
	if err != nil {
		return nil, err
	}
	out := make([]mux.ShellProfile, 0, len(resp.Profiles))
	for _, rec := range resp.Profiles {
		out = append(out, rec.toProfile())
	}
	return out, nil
}

func (c *Client) OnData(fn mux.DataFunc) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	key := c.nextSub
	c.dataSubs[key] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.dataSubs, key)
	}
}

func (c *Client) OnState(fn mux.StateFunc) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	key := c.nextSub
	c.stateSubs[key] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.stateSubs, key)
	}
}

func (c *Client) OnExit(fn mux.ExitFunc) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	key := c.nextSub
	c.exitSubs[key] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.exitSubs, key)
	}
}

func (c *Client) OnError(fn mux.ErrorFunc) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	key := c.nextSub
	c.errorSubs[key] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.errorSubs, key)
	}
}
