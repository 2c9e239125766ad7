package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "wardline"

// Span pairs an OTel span with the context that carries it.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartLinkedSpan starts a span for work that was enqueued by another process.
// When traceID and spanID name a valid remote span the new span links to it, so
// the delivery shows up next to the request that caused it. Exporters drop
// links without a span ID, so a trace ID alone starts an unlinked span.
func StartLinkedSpan(ctx context.Context, traceID, spanID, name string, opts ...trace.SpanStartOption) *Span {
	if origin, ok := remoteSpanContext(traceID, spanID); ok {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: origin}))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

func remoteSpanContext(traceID, spanID string) (trace.SpanContext, bool) {
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

func (s *Span) Context() context.Context { return s.ctx }

func (s *Span) End() { s.span.End() }

// RecordError records err and marks the span failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
