package logger

import (
	"context"
	"log/slog"

	"github.com/kilowulf/livdoc/internal/middleware"
)

// ContextHandler enriches every record with request-scoped attributes
// (correlation id, owner id) pulled from the context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := middleware.GetCorrelationID(ctx); id != "" && id != "unknown" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if owner := middleware.GetOwnerID(ctx); owner != "" {
		r.AddAttrs(slog.String("owner_id", owner))
	}
	return h.Handler.Handle(ctx, r)
}
