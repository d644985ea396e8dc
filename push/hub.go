package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

const writeWait = 10 * time.Second

// conn serializes writes to a single websocket. gorilla/websocket allows at
// most one concurrent writer per connection.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Hub issues connection ids at upgrade time and routes outbound payloads to
// the matching websocket. It holds no game state; presence lives in the
// registries.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*conn),
		log:   log,
	}
}

// Register adds the websocket and returns its freshly issued connection id.
func (h *Hub) Register(ws *websocket.Conn) string {
	id := uuid.NewString()

	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})

	h.mu.Lock()
	h.conns[id] = &conn{ws: ws}
	h.mu.Unlock()

	h.log.Debug("connection registered", "connection_id", id, "connections", h.Count())
	return id
}

// Unregister closes and forgets the connection. Unknown ids are a no-op.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	delete(h.conns, connectionID)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.ws.Close()
	h.log.Debug("connection unregistered", "connection_id", connectionID, "connections", h.Count())
}

// SendTo delivers one text frame. An unknown id or a write failure on a
// closing socket surfaces as domain.ErrGone.
func (h *Hub) SendTo(ctx context.Context, connectionID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()

	if !ok {
		return domain.ErrGone
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		h.Unregister(connectionID)
		return fmt.Errorf("%w: %w", domain.ErrGone, err)
	}
	return nil
}

// Ping sends a control ping so dead peers get reaped by the read deadline.
func (h *Hub) Ping(connectionID string) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()

	if !ok {
		return domain.ErrGone
	}
	return c.write(websocket.PingMessage, nil)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
