package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/middleware"
	chatService "github.com/tccredit/portal/backend/internal/service/chat"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// Handler serves the member chat endpoints.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat routes. Callers must authenticate first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/messages", h.handleSendMessage)
	r.Get("/chat/messages", h.handleListMessages)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chatSvc.Send(r.Context(), id.UserID, payload.Message)
	switch {
	case errors.Is(err, chatService.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.L().Error("chat message not stored", zap.String("user_id", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	utils.RespondJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.chatSvc.History(r.Context(), id.UserID, limit)
	if err != nil {
		logging.L().Error("chat history failed", zap.String("user_id", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, msgs)
}
