package chat

import (
	"context"
	"sync"
	"time"
)

// Store is the append-only message log. ListByUser returns newest first.
type Store interface {
	Create(ctx context.Context, msg Message) (Message, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Message, error)
}

// MemoryStore implements Store in process memory. Used for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint64
	last     time.Time
	messages []Message
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make([]Message, 0, 64),
		now:      time.Now,
	}
}

// Create assigns the next id and a timestamp that never goes backwards.
func (s *MemoryStore) Create(_ context.Context, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	s.nextID++

	msg.ID = s.nextID
	msg.Timestamp = ts
	s.messages = append(s.messages, msg)
	return msg, nil
}

// ListByUser returns up to limit messages for userID, newest first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].UserID == userID {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

// Len reports the total number of stored messages.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
