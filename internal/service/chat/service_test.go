package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	chatmodel "github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/service/ai"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
	chat "github.com/tccredit/portal/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResponder struct {
	mu        sync.Mutex
	result    ai.Result
	prompts   []string
	ctxErrs   []error
	sentiment []string
}

func (f *fakeResponder) Respond(ctx context.Context, msg string, _ map[string]any) ai.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, msg)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.result
}

func (f *fakeResponder) AnalyzeSentiment(_ context.Context, text string) ai.Sentiment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentiment = append(f.sentiment, text)
	return ai.Sentiment{Sentiment: ai.SentimentNeutral, Score: 0.5}
}

func (f *fakeResponder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type recordingHub struct {
	mu   sync.Mutex
	envs []chatmodel.Envelope
}

func (h *recordingHub) Broadcast(env chatmodel.Envelope, _ broadcast.Handle) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envs = append(h.envs, env)
	return 1
}

func (h *recordingHub) sent() []chatmodel.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]chatmodel.Envelope(nil), h.envs...)
}

// flakyStore fails the Create calls whose 1-based index is listed in failOn.
type flakyStore struct {
	*chatmodel.MemoryStore
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (s *flakyStore) Create(ctx context.Context, msg chatmodel.Message) (chatmodel.Message, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failOn[s.calls]
	s.mu.Unlock()
	if fail {
		return chatmodel.Message{}, errors.New("connection reset")
	}
	return s.MemoryStore.Create(ctx, msg)
}

func newFlakyStore(failOn ...int) *flakyStore {
	s := &flakyStore{MemoryStore: chatmodel.NewMemoryStore(), failOn: map[int]bool{}}
	for _, n := range failOn {
		s.failOn[n] = true
	}
	return s
}

func automated(text string) *fakeResponder {
	return &fakeResponder{result: ai.Result{Message: text, Classification: ai.Automated, Confidence: 0.9}}
}

func TestSendAutomatedReply(t *testing.T) {
	store := chatmodel.NewMemoryStore()
	hub := &recordingHub{}
	responder := automated("Disputes usually take 30 days.")
	svc := chat.NewService(store, responder, hub, chat.Config{})

	got, err := svc.Send(context.Background(), "member-1", "How long does a dispute take?")
	require.NoError(t, err)

	assert.False(t, got.IsFromTeam)
	assert.Equal(t, "How long does a dispute take?", got.Message)
	assert.NotZero(t, got.ID)
	assert.Equal(t, []string{"How long does a dispute take?"}, responder.prompts)

	history, err := svc.History(context.Background(), "member-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, got.ID, history[0].ID)
	assert.True(t, history[1].IsFromTeam)
	assert.Equal(t, chatmodel.AssistantName, history[1].Author())
	assert.Equal(t, "Disputes usually take 30 days.", history[1].Message)

	sent := hub.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, chatmodel.EventAIResponse, sent[0].Type)
	assert.Equal(t, history[1], sent[0].Data)
}

func TestSendEscalation(t *testing.T) {
	store := chatmodel.NewMemoryStore()
	hub := &recordingHub{}
	responder := &fakeResponder{result: ai.Result{Message: "ignored", Classification: ai.Escalate, Confidence: 0.95}}
	svc := chat.NewService(store, responder, hub, chat.Config{})

	_, err := svc.Send(context.Background(), "member-1", "I want a refund for last month")
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "member-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.EscalationNotice, history[1].Message)
	assert.Equal(t, chatmodel.SystemName, history[1].Author())

	sent := hub.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, chatmodel.EventEscalationNotice, sent[0].Type)
}

func TestSendEscalatesWhenModelUnavailable(t *testing.T) {
	responder, err := ai.NewResponder(context.Background(), nil, ai.Options{})
	require.NoError(t, err)

	store := chatmodel.NewMemoryStore()
	hub := &recordingHub{}
	svc := chat.NewService(store, responder, hub, chat.Config{})

	_, err = svc.Send(context.Background(), "member-1", "Can you remove a bankruptcy?")
	require.NoError(t, err)

	sent := hub.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, chatmodel.EventEscalationNotice, sent[0].Type)
	assert.Equal(t, 2, store.Len())
}

func TestSendValidation(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"whitespace": " \t\n ",
		"too long":   strings.Repeat("a", 4001),
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			store := chatmodel.NewMemoryStore()
			hub := &recordingHub{}
			responder := automated("hi")
			svc := chat.NewService(store, responder, hub, chat.Config{})

			_, err := svc.Send(context.Background(), "member-1", text)
			require.ErrorIs(t, err, chat.ErrValidation)
			assert.Zero(t, store.Len())
			assert.Zero(t, responder.calls())
			assert.Empty(t, hub.sent())
		})
	}
}

func TestSendAcceptsMaxLength(t *testing.T) {
	svc := chat.NewService(chatmodel.NewMemoryStore(), automated("ok"), &recordingHub{}, chat.Config{})

	_, err := svc.Send(context.Background(), "member-1", strings.Repeat("é", 4000))
	assert.NoError(t, err)
}

func TestSendStorageFailure(t *testing.T) {
	store := newFlakyStore(1)
	hub := &recordingHub{}
	responder := automated("hi")
	svc := chat.NewService(store, responder, hub, chat.Config{})

	_, err := svc.Send(context.Background(), "member-1", "hello")
	require.ErrorIs(t, err, chat.ErrStorage)
	assert.Zero(t, responder.calls())
	assert.Empty(t, hub.sent())
	assert.Zero(t, store.Len())
}

func TestSendRetriesFollowUpOnce(t *testing.T) {
	store := newFlakyStore(2)
	hub := &recordingHub{}
	svc := chat.NewService(store, automated("hi"), hub, chat.Config{})

	_, err := svc.Send(context.Background(), "member-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Len(t, hub.sent(), 1)
}

func TestSendDropsFollowUpAfterRetry(t *testing.T) {
	store := newFlakyStore(2, 3)
	hub := &recordingHub{}
	svc := chat.NewService(store, automated("hi"), hub, chat.Config{})

	got, err := svc.Send(context.Background(), "member-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, hub.sent())
}

func TestSendDetachesFromCanceledRequest(t *testing.T) {
	responder := automated("still here")
	hub := &recordingHub{}
	svc := chat.NewService(chatmodel.NewMemoryStore(), responder, hub, chat.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Send(ctx, "member-1", "hello")
	require.NoError(t, err)
	require.Len(t, responder.ctxErrs, 1)
	assert.NoError(t, responder.ctxErrs[0])
	assert.Len(t, hub.sent(), 1)
}

func TestSendSequentialKeepsPairsOrdered(t *testing.T) {
	const n = 20
	store := chatmodel.NewMemoryStore()
	svc := chat.NewService(store, automated("ack"), &recordingHub{}, chat.Config{MaxHistoryLimit: 200})

	for i := 0; i < n; i++ {
		_, err := svc.Send(context.Background(), "member-1", "question")
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), "member-1", 2*n)
	require.NoError(t, err)
	require.Len(t, history, 2*n)
	for i, msg := range history {
		assert.Equal(t, i%2 == 1, msg.IsFromTeam, "message %d", i)
		if i > 0 {
			assert.False(t, msg.Timestamp.Before(history[i-1].Timestamp), "message %d went backwards", i)
			assert.Greater(t, msg.ID, history[i-1].ID)
		}
	}
}

func TestSendRunsSentimentInBackground(t *testing.T) {
	responder := automated("ok")
	svc := chat.NewService(chatmodel.NewMemoryStore(), responder, &recordingHub{}, chat.Config{AnalyzeSentiment: true})

	_, err := svc.Send(context.Background(), "member-1", "this is taking forever")
	require.NoError(t, err)
	svc.Wait()

	responder.mu.Lock()
	defer responder.mu.Unlock()
	assert.Equal(t, []string{"this is taking forever"}, responder.sentiment)
}

func TestHistoryLimits(t *testing.T) {
	store := chatmodel.NewMemoryStore()
	for i := 0; i < 10; i++ {
		_, err := store.Create(context.Background(), chatmodel.FromMember("member-1", "m"))
		require.NoError(t, err)
	}
	_, err := store.Create(context.Background(), chatmodel.FromMember("member-2", "other"))
	require.NoError(t, err)

	svc := chat.NewService(store, automated("ok"), &recordingHub{}, chat.Config{HistoryLimit: 4, MaxHistoryLimit: 6})

	def, err := svc.History(context.Background(), "member-1", 0)
	require.NoError(t, err)
	require.Len(t, def, 4)
	assert.Equal(t, uint64(7), def[0].ID)
	assert.Equal(t, uint64(10), def[3].ID)

	capped, err := svc.History(context.Background(), "member-1", 1000)
	require.NoError(t, err)
	assert.Len(t, capped, 6)

	none, err := svc.History(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
