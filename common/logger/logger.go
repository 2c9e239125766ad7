package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"wardline.app/api/core/config"
)

// Setup installs the process-wide slog handler: text in development, JSON in
// production, and the OTel log bridge when an exporter is configured.
func Setup(cfg config.Config) {
	slog.SetDefault(slog.New(newHandler(cfg, os.Stdout)))
}

func newHandler(cfg config.Config, w io.Writer) slog.Handler {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		// The bridge records the span context itself.
		bridge := otelslog.NewHandler(cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()))
		return &ContextHandler{Handler: bridge}
	case cfg.IsProduction():
		return &ContextHandler{Handler: slog.NewJSONHandler(w, opts), traceIDs: true}
	default:
		return &ContextHandler{Handler: slog.NewTextHandler(w, opts), traceIDs: true}
	}
}

// ContextHandler adds the context's LogFields, and optionally its trace and
// span IDs, to each record.
type ContextHandler struct {
	slog.Handler
	traceIDs bool
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.traceIDs {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r.AddAttrs(
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	r.AddAttrs(GetLogFields(ctx).attrs()...)
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs), traceIDs: h.traceIDs}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name), traceIDs: h.traceIDs}
}
