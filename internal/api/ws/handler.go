package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/domain/session"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
	"github.com/GriffinCanCode/webharvest/internal/shared/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultBufferSize bounds the frames queued for one slow client
	DefaultBufferSize = 256
)

// DefaultPatterns are streamed when the client names none. dom:changed
// carries whole snapshots and must be asked for explicitly.
var DefaultPatterns = []string{"container:*:*", "operation:*:*"}

// Options configures a Handler
type Options struct {
	Sessions   *session.Manager
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	BufferSize int
	// CheckOrigin overrides the upgrader's origin check; nil allows all
	CheckOrigin func(r *http.Request) bool
}

// Handler manages WebSocket connections
type Handler struct {
	sessions   *session.Manager
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	bufferSize int
	upgrader   websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(opts Options) *Handler {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		sessions:   opts.Sessions,
		metrics:    opts.Metrics,
		logger:     logging.OrNop(opts.Logger),
		bufferSize: opts.BufferSize,
		upgrader:   websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
	}
}

// Register mounts the stream route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/sessions/:id/stream", h.HandleConnection)
}

// ClientMessage is a frame sent by the client
type ClientMessage struct {
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HandleConnection upgrades the request and streams the session's events
// until the client goes away
func (h *Handler) HandleConnection(c *gin.Context) {
	raw := c.Param("id")
	if !id.IsValidPrefixed(raw, id.SessionPrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}
	s, err := h.sessions.Get(id.SessionID(raw))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	patterns := c.QueryArray("pattern")
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if err := utils.ValidatePattern(p, "pattern", true); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	logger := h.logger.With(zap.String("session", s.ID.String()))
	logger.Debug("Stream opened", zap.Strings("patterns", patterns))

	ctx, cancel := context.WithCancel(c.Request.Context())
	st := &stream{
		out:    make(chan any, h.bufferSize),
		ctx:    ctx,
		logger: logger,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		st.writeLoop(conn)
		// unblock the reader when the writer fails
		_ = conn.Close()
	}()

	unsubscribe := make([]func(), 0, len(patterns))
	for _, p := range patterns {
		unsubscribe = append(unsubscribe, s.Bus.Subscribe(p, st.forward))
	}

	st.send(gin.H{
		"type":      "connected",
		"sessionId": s.ID,
		"patterns":  patterns,
		"timestamp": time.Now().Unix(),
	})

	h.readLoop(ctx, conn, s, st)

	for _, unsub := range unsubscribe {
		unsub()
	}
	cancel()
	wg.Wait()
	logger.Debug("Stream closed", zap.Int64("dropped", st.dropped()))
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, s *session.Session, st *stream) {
	conn.SetReadLimit(int64(utils.MaxJSONSize))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				st.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			st.send(gin.H{"type": "pong", "timestamp": time.Now().Unix()})
		case "message":
			if err := utils.ValidatePattern(msg.Message, "message", true); err != nil {
				st.sendError(err.Error())
				continue
			}
			dispatches := s.Controller.HandleMessage(ctx, msg.Message, msg.Payload)
			st.send(gin.H{
				"type":       "dispatches",
				"message":    msg.Message,
				"dispatches": dispatches,
				"timestamp":  time.Now().Unix(),
			})
		default:
			st.sendError("unknown message type")
		}
	}
}

// stream funnels bus events and replies into the single writer goroutine
type stream struct {
	out    chan any
	ctx    context.Context
	logger *zap.Logger

	mu        sync.Mutex
	dropCount int64
}

type eventFrame struct {
	Type  string         `json:"type"`
	Event eventbus.Event `json:"event"`
}

// forward is the bus handler. It never blocks the emitter.
func (st *stream) forward(_ context.Context, e eventbus.Event) error {
	st.send(eventFrame{Type: "event", Event: e})
	return nil
}

func (st *stream) send(v any) {
	select {
	case <-st.ctx.Done():
	case st.out <- v:
	default:
		st.mu.Lock()
		st.dropCount++
		st.mu.Unlock()
	}
}

func (st *stream) sendError(msg string) {
	st.send(gin.H{"type": "error", "message": msg})
}

func (st *stream) dropped() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dropCount
}

func (st *stream) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-st.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case v := <-st.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				st.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
