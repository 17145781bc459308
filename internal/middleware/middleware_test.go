package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccredit/portal/backend/internal/config"
	"github.com/tccredit/portal/backend/internal/model/portal"
	"github.com/tccredit/portal/backend/internal/service/auth"
)

func newAuth(t *testing.T) *auth.Service {
	t.Helper()
	return auth.NewService(portal.NewMemoryStore(), config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	w.Header().Set("X-User", id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func TestAuthenticate(t *testing.T) {
	svc := newAuth(t)
	token, err := svc.IssueToken(portal.User{ID: "u1", Role: portal.RoleMember})
	require.NoError(t, err)

	h := Authenticate(svc)(http.HandlerFunc(whoAmI))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer", "Bearer " + token, "", http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, "", http.StatusNoContent},
		{"query token", "", "?access_token=" + token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/chat/messages"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusNoContent {
				assert.Equal(t, "u1", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(whoAmI))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	member := httptest.NewRequest(http.MethodGet, "/", nil)
	member = member.WithContext(WithIdentity(member.Context(), Identity{UserID: "u1", Role: portal.RoleMember}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := httptest.NewRequest(http.MethodGet, "/", nil)
	admin = admin.WithContext(WithIdentity(admin.Context(), Identity{UserID: "a1", Role: portal.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://portal.example.com"})(http.HandlerFunc(whoAmI))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	preflight.Header.Set("Origin", "https://portal.example.com")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wildcard := CORS([]string{"*"})(http.HandlerFunc(whoAmI))
	rec = httptest.NewRecorder()
	wildcard.ServeHTTP(rec, other)
	assert.Equal(t, "https://evil.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := chimw.RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
