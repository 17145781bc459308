package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/service/ai"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
)

var (
	// ErrValidation rejects empty or oversized messages. Maps to 4xx.
	ErrValidation = errors.New("invalid message")
	// ErrStorage means the member's message could not be persisted. Maps to 5xx.
	ErrStorage = errors.New("message storage failure")
)

// EscalationNotice is stored and pushed when a conversation goes to a live agent.
const EscalationNotice = "This conversation has been escalated to a live agent. A team member will respond shortly."

// Responder produces the automated follow-up for a member message.
type Responder interface {
	Respond(ctx context.Context, userMessage string, userContext map[string]any) ai.Result
	AnalyzeSentiment(ctx context.Context, text string) ai.Sentiment
}

// Broadcaster pushes envelopes to live connections.
type Broadcaster interface {
	Broadcast(env chat.Envelope, exclude broadcast.Handle) int
}

// Config bounds message and history sizes.
type Config struct {
	MaxMessageLength int
	HistoryLimit     int
	MaxHistoryLimit  int
	AnalyzeSentiment bool
}

// Service runs the chat pipeline: persist the member message, ask the
// responder, persist the follow-up, then broadcast it.
type Service struct {
	store     chat.Store
	responder Responder
	hub       Broadcaster
	cfg       Config
	wg        sync.WaitGroup
}

// NewService wires the pipeline collaborators.
func NewService(store chat.Store, responder Responder, hub Broadcaster, cfg Config) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 4000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.MaxHistoryLimit < cfg.HistoryLimit {
		cfg.MaxHistoryLimit = cfg.HistoryLimit
	}
	return &Service{store: store, responder: responder, hub: hub, cfg: cfg}
}

// Send stores text for userID and returns the stored message. The follow-up
// (automated reply or escalation notice) is only delivered by broadcast.
func (s *Service) Send(ctx context.Context, userID, text string) (chat.Message, error) {
	defer logging.LogDuration(ctx, "chat.Send")()

	if err := s.validate(text); err != nil {
		return chat.Message{}, err
	}

	userMsg, err := s.store.Create(ctx, chat.FromMember(userID, text))
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// The member message is durable from here on; a dropped client must not
	// cost it its follow-up.
	ctx = context.WithoutCancel(ctx)

	result := s.responder.Respond(ctx, userMsg.Message, nil)
	followUp, event := followUpFor(userID, result)

	saved, err := s.persistFollowUp(ctx, followUp)
	if err != nil {
		logging.L().Error("dropping chat follow-up after retry",
			zap.String("user_id", userID),
			zap.Uint64("message_id", userMsg.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return userMsg, nil
	}

	delivered := s.hub.Broadcast(chat.Envelope{Type: event, Data: saved}, broadcast.Handle{})
	logging.L().Info("chat follow-up sent",
		zap.String("user_id", userID),
		zap.Uint64("message_id", userMsg.ID),
		zap.Uint64("follow_up_id", saved.ID),
		zap.String("event", string(event)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("delivered", delivered),
	)

	if s.cfg.AnalyzeSentiment {
		s.analyzeAsync(ctx, userID, userMsg)
	}
	return userMsg, nil
}

// History returns userID's latest messages oldest first. limit <= 0 selects
// the default; larger values are capped.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > s.cfg.MaxHistoryLimit {
		limit = s.cfg.MaxHistoryLimit
	}

	msgs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Wait blocks until background sentiment analysis has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(text); n > s.cfg.MaxMessageLength {
		return fmt.Errorf("%w: message is %d characters, limit is %d", ErrValidation, n, s.cfg.MaxMessageLength)
	}
	return nil
}

func followUpFor(userID string, result ai.Result) (chat.Message, chat.EventType) {
	if result.Classification == ai.Automated {
		return chat.FromTeam(userID, chat.AssistantName, result.Message), chat.EventAIResponse
	}
	return chat.FromTeam(userID, chat.SystemName, EscalationNotice), chat.EventEscalationNotice
}

// persistFollowUp retries a failed write once before giving up.
func (s *Service) persistFollowUp(ctx context.Context, msg chat.Message) (chat.Message, error) {
	saved, err := s.store.Create(ctx, msg)
	if err == nil {
		return saved, nil
	}

	logging.L().Warn("retrying chat follow-up write", zap.String("user_id", msg.UserID), zap.Error(err))
	return s.store.Create(ctx, msg)
}

func (s *Service) analyzeAsync(ctx context.Context, userID string, msg chat.Message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sentiment := s.responder.AnalyzeSentiment(ctx, msg.Message)
		logging.L().Info("chat sentiment",
			zap.String("user_id", userID),
			zap.Uint64("message_id", msg.ID),
			zap.String("sentiment", sentiment.Sentiment),
			zap.Float64("score", sentiment.Score),
		)
	}()
}
