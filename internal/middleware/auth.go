package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tccredit/portal/backend/internal/model/portal"
	"github.com/tccredit/portal/backend/internal/service/auth"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	ParseToken(raw string) (*auth.Claims, error)
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == portal.RoleAdmin
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller set by Authenticate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Authenticate rejects requests without a valid bearer token. EventSource
// clients cannot set headers, so an access_token query parameter is accepted too.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			claims, err := parser.ParseToken(raw)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only admin callers. It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin() {
			utils.RespondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}
