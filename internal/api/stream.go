package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/redisbus"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	requestWait    = 30 * time.Second
	maxRequestSize = 1 << 20
	wsBufferSize   = 1024
)

// Имена служебных сообщений потока.
const (
	StreamRunCompleted = redisbus.EventRunCompleted
	StreamError        = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CompletedMessage: последнее сообщение потока запуска.
type CompletedMessage struct {
	Event   string             `json:"event"`
	RunID   uuid.UUID          `json:"run_id"`
	Summary *domain.RunSummary `json:"summary"`
}

// StreamErrorMessage: сообщение об ошибке до начала обхода.
type StreamErrorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// streamConn сериализует запись в websocket.
// Первая ошибка записи отключает дальнейшие попытки.
type streamConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	broken bool
}

func (c *streamConn) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.broken = true
	}
}

func (c *streamConn) sendRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return false
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.broken = true
		return false
	}
	return true
}

func (c *streamConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.broken {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	_ = c.conn.Close()
}

// StreamRun выполняет граф и транслирует события в websocket.
// GET /api/v1/runs/stream
//
// Первое сообщение клиента: RunRequest. Дальше сервер шлёт по сообщению
// на каждое событие движка и завершает поток сообщением run.completed.
// Отключение клиента обход не останавливает.
func (h *Handler) StreamRun(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &streamConn{conn: ws}
	defer conn.close()

	ws.SetReadLimit(maxRequestSize)
	_ = ws.SetReadDeadline(time.Now().Add(requestWait))

	var req RunRequest
	if err := ws.ReadJSON(&req); err != nil {
		conn.send(StreamErrorMessage{Event: StreamError, Message: "invalid run request"})
		return
	}

	if len(req.Nodes) == 0 {
		conn.send(StreamErrorMessage{Event: StreamError, Message: "nodes are required"})
		return
	}

	if req.Validate {
		if err := engine.Validate(req.Nodes); err != nil {
			conn.send(StreamErrorMessage{Event: StreamError, Message: err.Error()})
			return
		}
	}

	runReq := newRequest(req.Nodes, req.RunOptions)
	runReq.Handlers = []engine.Handler{func(ev engine.Event) {
		conn.send(ev)
	}}

	done := make(chan struct{})
	x, err := h.runner.Start(r.Context(), runReq, func(s *domain.RunSummary) {
		conn.send(CompletedMessage{Event: StreamRunCompleted, RunID: s.RunID, Summary: s})
		close(done)
	})
	if err != nil {
		conn.send(StreamErrorMessage{Event: StreamError, Message: err.Error()})
		return
	}

	telemetry.WithRunID(telemetry.FromContext(r.Context()), x.ID().String()).Debug("streaming run")
	<-done
}

// StreamRunEvents транслирует события запуска, идущего в другом процессе,
// из Redis-канала запуска в websocket.
// GET /api/v1/runs/{id}/stream
func (h *Handler) StreamRunEvents(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		Unavailable(w, "event bus is not configured")
		return
	}

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := redisbus.Subscribe(ctx, h.redis, redisbus.RunChannel(runID))
	if err != nil {
		InternalError(w, r, err)
		return
	}
	defer sub.Close()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &streamConn{conn: ws}
	defer conn.close()

	// Клиент ничего не шлёт: чтение нужно только чтобы заметить закрытие.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for msg := range sub.Messages() {
		if !conn.sendRaw(msg.Raw) {
			return
		}
		if msg.IsCompleted() {
			return
		}
	}
}
