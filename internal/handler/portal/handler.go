package portal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/middleware"
	"github.com/tccredit/portal/backend/internal/model/portal"
	portalService "github.com/tccredit/portal/backend/internal/service/portal"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// Handler serves the public forms, the member dashboard and the admin panel.
type Handler struct {
	svc *portalService.Service
}

// New creates the portal handler.
func New(svc *portalService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the unauthenticated forms.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/consultations", h.handleCreateConsultation)
	r.Post("/contact", h.handleCreateContact)
	r.Post("/applications", h.handleCreateApplication)
}

// RegisterRoutes mounts member routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/credit/progress", h.handleCreditProgress)
}

// RegisterAdminRoutes mounts the review panel routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/consultations", h.handleListConsultations)
	r.Patch("/consultations/{id}/status", h.handleConsultationStatus)
	r.Get("/contact", h.handleListContacts)
	r.Get("/applications", h.handleListApplications)
	r.Patch("/applications/{id}", h.handleReviewApplication)
	r.Post("/credit/progress", h.handleRecordProgress)
}

// respondServiceError maps service errors onto status codes.
func respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, portalService.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portal.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, portal.ErrDuplicate):
		utils.RespondError(w, http.StatusConflict, "already exists")
	default:
		logging.L().Error("portal request failed", zap.String("op", op), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func idParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleCreateConsultation(w http.ResponseWriter, r *http.Request) {
	var req portalService.ConsultationRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.svc.RequestConsultation(r.Context(), req)
	if err != nil {
		respondServiceError(w, "create consultation", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListConsultations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Consultations(r.Context())
	if err != nil {
		respondServiceError(w, "fetch consultations", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleConsultationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Status portal.ConsultationStatus `json:"status"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetConsultationStatus(r.Context(), id, req.Status); err != nil {
		respondServiceError(w, "update consultation", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

func (h *Handler) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req portalService.ContactRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.svc.Contact(r.Context(), req)
	if err != nil {
		respondServiceError(w, "submit contact form", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Contacts(r.Context())
	if err != nil {
		respondServiceError(w, "fetch contact submissions", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req portalService.ApplicationRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	app, err := h.svc.Apply(r.Context(), req)
	if err != nil {
		respondServiceError(w, "submit application", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Applications(r.Context())
	if err != nil {
		respondServiceError(w, "fetch applications", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleReviewApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req portalService.ReviewRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	reviewer, _ := middleware.IdentityFrom(r.Context())
	app, err := h.svc.Review(r.Context(), id, reviewer.UserID, req)
	if err != nil {
		respondServiceError(w, "review application", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, app)
}

func (h *Handler) handleCreditProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	progress, err := h.svc.CreditProgress(r.Context(), id.UserID)
	if err != nil {
		respondServiceError(w, "fetch credit progress", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	var req portalService.ProgressRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.RecordProgress(r.Context(), req)
	if err != nil {
		respondServiceError(w, "record credit progress", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, p)
}
