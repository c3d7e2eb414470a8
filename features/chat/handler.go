package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// ListMessages serves one page of the conversation, newest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	ownerID := middleware.GetOwnerID(r.Context())
	cursor := r.URL.Query().Get("cursor")

	limit := DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	page, err := h.service.ListMessages(r.Context(), documentID, ownerID, cursor, limit)
	if errors.Is(err, apperr.ErrNotFound) {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list messages", "error", err, "document_id", documentID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": page}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Ask streams the answer body token by token. Errors that occur before the
// first token get the usual JSON envelope; once bytes are on the wire the
// handler can only log and stop.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	ownerID := middleware.GetOwnerID(r.Context())

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.ErrorContext(r.Context(), "response writer does not support streaming")
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	started := false
	emit := func(token string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(token)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.service.Ask(r.Context(), documentID, ownerID, req.Question, emit)
	if err == nil {
		if !started {
			// The model produced nothing. An empty 200 body is still a
			// valid answer.
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	if started {
		slog.WarnContext(r.Context(), "answer stream ended early", "error", err, "document_id", documentID)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		h.writeError(r.Context(), w, "DOCUMENT_NOT_READY", err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrUpstream):
		slog.ErrorContext(r.Context(), "answer generation failed", "error", err, "document_id", documentID)
		h.writeError(r.Context(), w, "UPSTREAM_ERROR", "answer generation is temporarily unavailable", http.StatusBadGateway)
	default:
		slog.ErrorContext(r.Context(), "failed to answer question", "error", err, "document_id", documentID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
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
