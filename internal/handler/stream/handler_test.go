package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// readLines collects SSE lines until want of them are non-empty.
func readLines(t *testing.T, sc *bufio.Scanner, want int) []string {
	t.Helper()
	var lines []string
	for len(lines) < want && sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, want)
	return lines
}

func TestStreamRelaysHubEnvelopes(t *testing.T) {
	hub := broadcast.NewHub()
	r := chi.NewRouter()
	New(hub, 20*time.Millisecond).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/chat/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	status := readLines(t, sc, 2)
	assert.Equal(t, "event: status", status[0])

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(chat.Envelope{Type: chat.EventEscalationNotice, Data: map[string]string{"message": "escalated"}}, broadcast.Handle{})

	var sawHeartbeat, sawEnvelope bool
	for i := 0; i < 20 && !(sawHeartbeat && sawEnvelope); i++ {
		line := readLines(t, sc, 1)[0]
		switch {
		case strings.HasPrefix(line, ": heartbeat"):
			sawHeartbeat = true
		case strings.HasPrefix(line, "data: "):
			assert.JSONEq(t, `{"type":"escalation_notice","data":{"message":"escalated"}}`, strings.TrimPrefix(line, "data: "))
			sawEnvelope = true
		}
	}
	assert.True(t, sawEnvelope)
	assert.True(t, sawHeartbeat)

	cancel()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSubscriberSend(t *testing.T) {
	sub := newSubscriber()
	for i := 0; i < cap(sub.frames); i++ {
		require.NoError(t, sub.Send([]byte("x")))
	}
	assert.ErrorIs(t, sub.Send([]byte("x")), broadcast.ErrSendBufferFull)

	sub.close()
	assert.False(t, sub.Open())
	assert.ErrorIs(t, sub.Send([]byte("x")), broadcast.ErrConnClosed)
}
