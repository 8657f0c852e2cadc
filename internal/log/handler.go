// Package log provides a context-aware slog.Handler used by both the
// HTTP submission API and the worker pool. A record logged with a
// context that carries a request id gets a request_id attribute; the
// worker pool's contexts carry none, so its records rely on the
// job_id/worker_id attributes its own logging adds.
package log

import (
	"context"
	"log/slog"

	"github.com/arjunmehta-dev/taskforge/internal/requestid"
)

// ContextHandler wraps an slog.Handler and enriches every record with
// request_id from ctx before delegating to inner.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
