package psql

import (
	"context"
	"fmt"
	"time"

	"github.com/tccredit/portal/backend/internal/model/chat"
)

// ChatStore implements chat.Store on the chat_messages table.
type ChatStore struct {
	db *Database
}

var _ chat.Store = (*ChatStore)(nil)

// NewChatStore returns a chat.Store backed by db.
func NewChatStore(db *Database) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) Create(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = 0
	msg.Timestamp = time.Now().UTC()
	if err := s.db.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return chat.Message{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

func (s *ChatStore) ListByUser(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0, limit)
	err := s.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return msgs, nil
}
