package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/metrics"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/push"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/queue"
)

const (
	// eventTimeout bounds every inbound event, mirroring the transport's own
	// timeout; there is no application-level cancellation beyond it.
	eventTimeout = 10 * time.Second

	pingPeriod   = 30 * time.Second
	maxFrameSize = 1 << 20
)

// inboundEnvelope selects the logical route for a frame.
type inboundEnvelope struct {
	Action string `json:"action"`
}

type enterRoomRequest struct {
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
}

type startGameRequest struct {
	RoomID   string `json:"room_id"`
	NOdai    int    `json:"n_odai"`
	NTimeSec int    `json:"n_time_sec"`
}

// Handler owns the websocket endpoint: upgrade, connect/disconnect
// lifecycle, and demultiplexing of inbound frames onto the coordinator and
// the inference queue. It is the outermost error boundary — internal error
// kinds are logged in full and never leak to the client.
type Handler struct {
	hub         *push.Hub
	coordinator *Coordinator
	queue       queue.Publisher
	log         *slog.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(hub *push.Hub, coordinator *Coordinator, publisher queue.Publisher, log *slog.Logger) *Handler {
	return &Handler{
		hub:         hub,
		coordinator: coordinator,
		queue:       publisher,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the router middleware before upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and runs its read loop. Each inbound
// frame is handled as an independent invocation; frames from the same
// connection may be processed concurrently, with no ordering guarantee.
func (h *Handler) ServeWS(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err, "ip", ctx.ClientIP())
		return
	}

	connectionID := h.hub.Register(conn)

	ectx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	err = h.coordinator.OnConnect(ectx, connectionID)
	cancel()
	if err != nil {
		h.log.Error("connect failed", "connection_id", connectionID, "error", err)
		h.hub.Unregister(connectionID)
		return
	}
	h.log.Info("connected", "connection_id", connectionID)

	stop := make(chan struct{})
	go h.pingLoop(connectionID, stop)

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(time.Minute))

	limiter := rate.NewLimiter(rate.Limit(2), 5)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		go h.handleFrame(connectionID, limiter, data)
	}
	close(stop)

	h.hub.Unregister(connectionID)

	ectx, cancel = context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := h.coordinator.OnDisconnect(ectx, connectionID); err != nil {
		h.log.Error("disconnect cleanup failed", "connection_id", connectionID, "error", err)
		return
	}
	h.log.Info("disconnected", "connection_id", connectionID)
}

func (h *Handler) pingLoop(connectionID string, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.hub.Ping(connectionID); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// handleFrame is the catch-all boundary: any unhandled internal error maps
// to a log line and an opaque no-reply, never a crash of the read loop.
func (h *Handler) handleFrame(connectionID string, limiter *rate.Limiter, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := h.route(ctx, connectionID, limiter, data); err != nil {
		h.log.Error("event failed", "connection_id", connectionID, "error", err)
	}
}

func (h *Handler) route(ctx context.Context, connectionID string, limiter *rate.Limiter, data []byte) error {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: undecodable frame: %w", domain.ErrValidation, err)
	}

	switch env.Action {
	case "enter_room":
		var req enterRoomRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return h.coordinator.OnJoin(ctx, connectionID, req.RoomID, req.UserName)

	case "start_game":
		var req startGameRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return h.coordinator.OnStartRound(ctx, req.RoomID, req.NOdai, req.NTimeSec)

	case "predict":
		return h.enqueue(ctx, connectionID, limiter, data)

	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, env.Action)
	}
}

// enqueue forwards the submission verbatim onto the inference queue and
// returns immediately; inference never runs on the connection path.
func (h *Handler) enqueue(ctx context.Context, connectionID string, limiter *rate.Limiter, data []byte) error {
	if !limiter.Allow() {
		metrics.SubmissionsThrottled.Inc()
		return fmt.Errorf("%w: submission rate exceeded", domain.ErrValidation)
	}

	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if sub.ImgB64 == "" || sub.ImgID == "" {
		return fmt.Errorf("%w: predict requires img_b64 and img_id", domain.ErrValidation)
	}
	sub.ConnectionID = connectionID

	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := h.queue.Publish(ctx, payload); err != nil {
		return err
	}
	metrics.QueuePublished.Inc()
	return nil
}
