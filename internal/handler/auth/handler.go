package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/middleware"
	"github.com/tccredit/portal/backend/internal/model/portal"
	authService "github.com/tccredit/portal/backend/internal/service/auth"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// Handler serves registration, sign-in and the current-user lookup.
type Handler struct {
	authSvc *authService.Service
}

// New creates the auth handler.
func New(authSvc *authService.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterPublicRoutes mounts routes that need no token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterRoutes mounts routes that need a token.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/user", h.handleCurrentUser)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authService.RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authSvc.Register(r.Context(), req)
	switch {
	case errors.Is(err, authService.ErrInvalidEmail), errors.Is(err, authService.ErrWeakPassword):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, authService.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		logging.L().Error("registration failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	respondSession(w, http.StatusCreated, token, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authService.LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authSvc.Login(r.Context(), req)
	switch {
	case errors.Is(err, authService.ErrInvalidEmail):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, authService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		logging.L().Error("login failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondSession(w, http.StatusOK, token, user)
}

func respondSession(w http.ResponseWriter, status int, token string, user portal.User) {
	utils.RespondJSON(w, status, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authSvc.CurrentUser(r.Context(), id.UserID)
	switch {
	case errors.Is(err, portal.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		logging.L().Error("fetch user failed", zap.String("user_id", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	utils.RespondJSON(w, http.StatusOK, user)
}
