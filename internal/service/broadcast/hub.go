// Package broadcast fans realtime frames out to every open connection of this process.
package broadcast

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/chat"
)

var (
	// ErrConnClosed is returned by Conn.Send once the transport is gone.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is a realtime transport the hub can push frames to.
type Conn interface {
	// Open reports whether the transport can still be written to.
	Open() bool
	// Send queues payload for delivery without blocking.
	Send(payload []byte) error
}

// Handle identifies a registered connection. The zero Handle matches nothing.
type Handle struct {
	id uint64
}

// Valid reports whether h was returned by Register.
func (h Handle) Valid() bool {
	return h.id != 0
}

// Hub holds the live connection set.
type Hub struct {
	mu    sync.RWMutex
	next  uint64
	conns map[uint64]Conn
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint64]Conn)}
}

// Register adds conn and returns its handle.
func (h *Hub) Register(conn Conn) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	h.conns[h.next] = conn
	logging.L().Debug("realtime client registered", zap.Uint64("conn", h.next), zap.Int("total", len(h.conns)))
	return Handle{id: h.next}
}

// Unregister removes the connection; unknown handles are ignored.
func (h *Hub) Unregister(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[handle.id]; !ok {
		return
	}
	delete(h.conns, handle.id)
	logging.L().Debug("realtime client unregistered", zap.Uint64("conn", handle.id), zap.Int("total", len(h.conns)))
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast delivers env to every open connection except exclude and returns
// how many accepted it. A failing connection is logged and dropped from the
// set; it never affects delivery to the others.
func (h *Hub) Broadcast(env chat.Envelope, exclude Handle) int {
	payload, err := json.Marshal(env)
	if err != nil {
		logging.L().Error("marshal realtime envelope", zap.String("type", string(env.Type)), zap.Error(err))
		return 0
	}

	type target struct {
		id   uint64
		conn Conn
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.conns))
	for id, conn := range h.conns {
		if id == exclude.id {
			continue
		}
		targets = append(targets, target{id: id, conn: conn})
	}
	h.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		if err := deliver(t.conn, payload); err != nil {
			logging.L().Warn("realtime delivery failed",
				zap.Uint64("conn", t.id),
				zap.String("type", string(env.Type)),
				zap.Error(err),
			)
			h.Unregister(Handle{id: t.id})
			continue
		}
		delivered++
	}
	return delivered
}

func deliver(conn Conn, payload []byte) error {
	if !conn.Open() {
		return ErrConnClosed
	}
	return conn.Send(payload)
}
