package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccredit/portal/backend/internal/config"
	"github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/model/portal"
	"github.com/tccredit/portal/backend/internal/service/ai"
	authService "github.com/tccredit/portal/backend/internal/service/auth"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
	chatService "github.com/tccredit/portal/backend/internal/service/chat"
	documentService "github.com/tccredit/portal/backend/internal/service/documents"
	portalService "github.com/tccredit/portal/backend/internal/service/portal"
)

const (
	adminEmail    = "admin@tccredit.com"
	adminPassword = "review-panel-1"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithAuth(t, config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
}

func newTestServerWithAuth(t *testing.T, authCfg config.AuthConfig) *httptest.Server {
	t.Helper()

	responder, err := ai.NewResponder(context.Background(), nil, ai.Options{})
	require.NoError(t, err)

	hub := broadcast.NewHub()
	portals := portal.NewMemoryStore()
	auth := authService.NewService(portals, authCfg)
	_, err = auth.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)

	svcs := Services{
		Hub:       hub,
		Chat:      chatService.NewService(chat.NewMemoryStore(), responder, hub, chatService.Config{}),
		Auth:      auth,
		Portal:    portalService.NewService(portals),
		Documents: documentService.NewService(documentService.NewMemoryObjectStore(), portals, 1<<20),
	}

	srv := httptest.NewServer(NewRouter(config.ServerConfig{
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
	}, svcs))
	t.Cleanup(srv.Close)
	return srv
}

func authenticate(t *testing.T, srv *httptest.Server, path, body string) string {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, path)

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session.Token
}

func register(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	return authenticate(t, srv, "/api/auth/register", `{"email":"`+email+`","password":"member-pass-1"}`)
}

func loginAdmin(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return authenticate(t, srv, "/api/auth/login", `{"email":"`+adminEmail+`","password":"`+adminPassword+`"}`)
}

func call(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/chat/messages", "/api/auth/user", "/api/documents", "/api/credit/progress", "/api/consultations"} {
		resp := call(t, http.MethodGet, srv.URL+path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	srv := newTestServer(t)

	member := register(t, srv, "ana@example.com")
	admin := loginAdmin(t, srv)

	assert.Equal(t, http.StatusForbidden, call(t, http.MethodGet, srv.URL+"/api/applications", member, "").StatusCode)
	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/applications", admin, "").StatusCode)
	assert.Equal(t, http.StatusCreated, call(t, http.MethodPost, srv.URL+"/api/contact", "", `{"name":"A","email":"a@b.co","message":"hi"}`).StatusCode)
}

func TestAdminPanelNeedsAdminPassword(t *testing.T) {
	for _, devLogin := range []bool{false, true} {
		srv := newTestServerWithAuth(t, config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour, DevLogin: devLogin})

		for _, body := range []string{
			`{"email":"` + adminEmail + `"}`,
			`{"email":"` + adminEmail + `","password":"not-the-password"}`,
		} {
			resp := call(t, http.MethodPost, srv.URL+"/api/auth/login", "", body)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "dev login %v: %s", devLogin, body)
		}

		resp := call(t, http.MethodGet, srv.URL+"/api/applications", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		if devLogin {
			// A credential-less session is a member session.
			member := authenticate(t, srv, "/api/auth/login", `{"email":"walk-in@example.com"}`)
			resp = call(t, http.MethodGet, srv.URL+"/api/applications", member, "")
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
	}
}

func TestChatMessageEscalationReachesSocket(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "ana@example.com")

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	// Registration happens after the upgrade response is written.
	time.Sleep(50 * time.Millisecond)

	resp := call(t, http.MethodPost, srv.URL+"/api/chat/messages", token, `{"message":"I want to dispute a charge on my bill"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var userMsg chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&userMsg))
	assert.False(t, userMsg.IsFromTeam)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env struct {
		Type chat.EventType `json:"type"`
		Data chat.Message   `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&env))
	assert.Equal(t, chat.EventEscalationNotice, env.Type)
	assert.Equal(t, chatService.EscalationNotice, env.Data.Message)
	assert.Equal(t, chat.SystemName, env.Data.Author())
	assert.Equal(t, userMsg.UserID, env.Data.UserID)

	hist := call(t, http.MethodGet, srv.URL+"/api/chat/messages", token, "")
	require.Equal(t, http.StatusOK, hist.StatusCode)
	var msgs []chat.Message
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, userMsg.ID, msgs[0].ID)
	assert.Equal(t, env.Data.ID, msgs[1].ID)
}
