// Package stream serves the Server-Sent Events fallback for browsers that
// cannot hold a WebSocket open.
package stream

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/middleware"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// DefaultHeartbeat keeps idle proxies from closing the stream.
const DefaultHeartbeat = 15 * time.Second

// Hub is the subset of the broadcast hub a stream subscribes to.
type Hub interface {
	Register(conn broadcast.Conn) broadcast.Handle
	Unregister(handle broadcast.Handle)
}

// Handler relays hub envelopes over SSE.
type Handler struct {
	hub       Hub
	heartbeat time.Duration
}

// New creates the stream handler. heartbeat <= 0 selects DefaultHeartbeat.
func New(hub Hub, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{hub: hub, heartbeat: heartbeat}
}

// RegisterRoutes mounts the stream endpoint. Callers must authenticate first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

// subscriber adapts an SSE response to broadcast.Conn.
type subscriber struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newSubscriber() *subscriber {
	return &subscriber{frames: make(chan []byte, 32), done: make(chan struct{})}
}

func (s *subscriber) Open() bool {
	return !s.closed.Load()
}

func (s *subscriber) Send(payload []byte) error {
	if s.closed.Load() {
		return broadcast.ErrConnClosed
	}
	select {
	case <-s.done:
		return broadcast.ErrConnClosed
	case s.frames <- payload:
		return nil
	default:
		return broadcast.ErrSendBufferFull
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	sub := newSubscriber()
	handle := h.hub.Register(sub)
	defer func() {
		h.hub.Unregister(handle)
		sub.close()
		logging.L().Info("sse stream closed", zap.String("user_id", id.UserID))
	}()
	logging.L().Info("sse stream opened", zap.String("user_id", id.UserID))

	if err := utils.SendSSEEvent(w, flusher, "status", map[string]string{"message": "stream established"}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sub.frames:
			if err := utils.SendSSERaw(w, flusher, "message", payload); err != nil {
				logging.L().Debug("sse write failed", zap.Error(err))
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat "+t.UTC().Format(time.RFC3339)); err != nil {
				return
			}
		}
	}
}
