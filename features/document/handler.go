package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kilowulf/livdoc/internal/apperr"
	"github.com/kilowulf/livdoc/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UploadComplete is the upload-provider webhook: the file is durably stored
// and ready for ingestion. Duplicate deliveries for the same storage key
// are absorbed downstream, so this always answers 202 for a valid request.
func (h *Handler) UploadComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StorageKey string `json:"storage_key"`
		Name       string `json:"name"`
		SourceURL  string `json:"source_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "caller identity required", http.StatusUnauthorized)
		return
	}
	planID := middleware.GetPlanID(r.Context())

	err := h.service.PublishIngest(r.Context(), ownerID, planID, req.StorageKey, req.Name, req.SourceURL)
	if errors.Is(err, apperr.ErrInvalidInput) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "upload completion failed", "error", err, "storage_key", req.StorageKey)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]string{"storage_key": req.StorageKey, "status": StatusProcessing},
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Get serves the status poll.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ownerID := middleware.GetOwnerID(r.Context())

	doc, err := h.service.Get(r.Context(), id, ownerID)
	if errors.Is(err, apperr.ErrNotFound) {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to fetch document", "error", err, "document_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context(), middleware.GetOwnerID(r.Context()))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list documents", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ownerID := middleware.GetOwnerID(r.Context())

	err := h.service.Delete(r.Context(), id, ownerID)
	if errors.Is(err, apperr.ErrNotFound) {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to delete document", "error", err, "document_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
