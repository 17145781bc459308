package documents

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/middleware"
	"github.com/tccredit/portal/backend/internal/model/portal"
	documentService "github.com/tccredit/portal/backend/internal/service/documents"
	"github.com/tccredit/portal/backend/pkg/utils"
)

// multipartOverhead leaves room for form boundaries around the file part.
const multipartOverhead = 1 << 20

// Handler serves member document upload, download and removal.
type Handler struct {
	svc *documentService.Service
}

// New creates the documents handler.
func New(svc *documentService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the document routes. Callers must authenticate first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/documents", h.handleList)
	r.Post("/documents/upload", h.handleUpload)
	r.Get("/documents/{id}/download", h.handleDownload)
	r.Delete("/documents/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docs, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		logging.L().Error("list documents failed", zap.String("user_id", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch documents")
		return
	}
	utils.RespondJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, documentService.ErrTooLarge.Error())
			return
		}
		utils.RespondError(w, http.StatusBadRequest, documentService.ErrEmptyUpload.Error())
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	doc, err := h.svc.Upload(r.Context(), id.UserID, documentService.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	switch {
	case errors.Is(err, documentService.ErrEmptyUpload):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, documentService.ErrTooLarge):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		logging.L().Error("document upload failed", zap.String("user_id", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to upload document")
		return
	}

	utils.RespondJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	err = h.svc.Delete(r.Context(), id.UserID, docID)
	switch {
	case errors.Is(err, portal.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "document not found")
		return
	case err != nil:
		logging.L().Error("document delete failed", zap.Uint64("document_id", docID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	doc, body, err := h.svc.Open(r.Context(), id.UserID, docID)
	switch {
	case errors.Is(err, portal.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "document not found")
		return
	case err != nil:
		logging.L().Error("document download failed", zap.Uint64("document_id", docID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to download document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logging.L().Warn("document stream interrupted", zap.Uint64("document_id", docID), zap.Error(fmt.Errorf("copy: %w", err)))
	}
}
