package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tccredit/portal/backend/internal/config"
	authHandler "github.com/tccredit/portal/backend/internal/handler/auth"
	chatHandler "github.com/tccredit/portal/backend/internal/handler/chat"
	documentHandler "github.com/tccredit/portal/backend/internal/handler/documents"
	portalHandler "github.com/tccredit/portal/backend/internal/handler/portal"
	"github.com/tccredit/portal/backend/internal/handler/realtime"
	"github.com/tccredit/portal/backend/internal/handler/stream"
	"github.com/tccredit/portal/backend/internal/middleware"
	authService "github.com/tccredit/portal/backend/internal/service/auth"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
	chatService "github.com/tccredit/portal/backend/internal/service/chat"
	documentService "github.com/tccredit/portal/backend/internal/service/documents"
	portalService "github.com/tccredit/portal/backend/internal/service/portal"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// Services are the dependencies the HTTP layer routes to.
type Services struct {
	Hub       *broadcast.Hub
	Chat      *chatService.Service
	Auth      *authService.Service
	Portal    *portalService.Service
	Documents *documentService.Service
}

// NewRouter wires HTTP routes to core services. Long-lived connections (/ws
// and the SSE stream) are mounted outside the request timeout.
func NewRouter(cfg config.ServerConfig, svcs Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	auth := authHandler.New(svcs.Auth)
	chat := chatHandler.New(svcs.Chat)
	portal := portalHandler.New(svcs.Portal)
	documents := documentHandler.New(svcs.Documents)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	realtime.New(svcs.Hub, cfg.AllowedOrigins).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(chimw.Timeout(cfg.RequestTimeout))
			auth.RegisterPublicRoutes(public)
			portal.RegisterPublicRoutes(public)
		})

		api.Group(func(private chi.Router) {
			private.Use(middleware.Authenticate(svcs.Auth))

			stream.New(svcs.Hub, stream.DefaultHeartbeat).RegisterRoutes(private)

			private.Group(func(member chi.Router) {
				member.Use(chimw.Timeout(cfg.RequestTimeout))
				auth.RegisterRoutes(member)
				chat.RegisterRoutes(member)
				portal.RegisterRoutes(member)
				documents.RegisterRoutes(member)

				member.Group(func(admin chi.Router) {
					admin.Use(middleware.RequireAdmin)
					portal.RegisterAdminRoutes(admin)
				})
			})
		})
	})

	return r
}
