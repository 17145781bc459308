// Package realtime serves the /ws socket that carries chat envelopes to browsers.
package realtime

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
)

// Hub is the connection registry the socket endpoint feeds.
type Hub interface {
	Register(conn broadcast.Conn) broadcast.Handle
	Unregister(handle broadcast.Handle)
	Broadcast(env chat.Envelope, exclude broadcast.Handle) int
}

// Handler upgrades /ws requests and relays client frames.
type Handler struct {
	hub      Hub
	upgrader websocket.Upgrader
}

// New returns a Handler accepting browser origins from allowed ("*" for any).
func New(hub Hub, allowed []string) *Handler {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowed, origin)
			},
		},
	}
}

// RegisterRoutes mounts the socket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Type chat.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn)
	handle := h.hub.Register(c)
	logging.L().Info("websocket connected", zap.String("remote", r.RemoteAddr))

	go c.writePump()
	h.readPump(c, handle)
}

// readPump runs on the request goroutine until the peer goes away.
func (h *Handler) readPump(c *client, handle broadcast.Handle) {
	defer func() {
		h.hub.Unregister(handle)
		c.close()
		logging.L().Info("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.L().Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logging.L().Debug("ignoring malformed websocket frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case chat.EventChatMessage:
			h.hub.Broadcast(chat.Envelope{Type: chat.EventNewMessage, Data: frame.Data}, handle)
		default:
			logging.L().Debug("ignoring websocket frame", zap.String("type", string(frame.Type)))
		}
	}
}
