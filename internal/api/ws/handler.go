package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
	"github.com/ferxalbs/termmux/internal/mux"
	"github.com/ferxalbs/termmux/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS layer
	},
}

const sendQueueSize = 256

// Handler manages terminal streaming WebSocket connections.
type Handler struct {
	svc     *mux.Service
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler.
func NewHandler(svc *mux.Service, log *logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// WithMetrics attaches connection and message instrumentation.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// clientMessage is an inbound frame from the UI.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

// serverMessage is an outbound frame to the UI.
type serverMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HandleConnection upgrades the request and runs the connection until
// the client goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnectionID()
	log := h.log.With(zap.String("connection_id", string(connID)))
	log.Info("Terminal stream connected")

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	out := make(chan serverMessage, sendQueueSize)
	done := make(chan struct{})
	defer close(done)

	go h.writeLoop(conn, out, done, log)

	// Fan session events into the send queue. Dropping on a full queue
	// keeps a stalled client from blocking dispatch to everyone else.
	enqueue := func(msg serverMessage) {
		msg.Timestamp = time.Now().Unix()
		select {
		case out <- msg:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", msg.Type)
			}
		default:
			log.Warn("Send queue full, dropping frame",
				zap.String("type", msg.Type),
				zap.String("session_id", msg.SessionID),
			)
		}
	}

	removers := []func(){
		h.svc.OnData(func(sessionID, payload string) {
			enqueue(serverMessage{Type: "data", SessionID: sessionID, Data: payload})
		}),
		h.svc.OnState(func(sessionID string, state mux.State) {
			enqueue(serverMessage{Type: "state", SessionID: sessionID, State: string(state)})
		}),
		h.svc.OnExit(func(sessionID string) {
			enqueue(serverMessage{Type: "exit", SessionID: sessionID})
		}),
		h.svc.OnError(func(sessionID, message string) {
			enqueue(serverMessage{Type: "error", SessionID: sessionID, Message: message})
		}),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	enqueue(serverMessage{Type: "system", Message: "connected"})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Terminal stream read error", zap.Error(err))
			}
			log.Info("Terminal stream disconnected")
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "write":
			h.svc.Write(msg.SessionID, msg.Data)
		case "resize":
			h.svc.Resize(msg.SessionID, msg.Cols, msg.Rows)
		case "ping":
			enqueue(serverMessage{Type: "pong"})
		default:
			enqueue(serverMessage{Type: "error", Message: "unknown message type: " + msg.Type})
		}
	}
}

// writeLoop serializes all writes to the connection.
func (h *Handler) writeLoop(conn *websocket.Conn, out <-chan serverMessage, done <-chan struct{}, log *zap.Logger) {
	for {
		select {
		case msg := <-out:
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("Terminal stream write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
