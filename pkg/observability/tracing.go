package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for reconciliation operations.
	TracerName = "ottermatch"
)

// Span attribute keys
const (
	AttrRunID      = "run_id"
	AttrGroup      = "group"
	AttrEventName  = "event_name"
	AttrEventCount = "event_count"
	AttrFileCount  = "file_count"
	AttrGroupCount = "group_count"
	AttrPaired     = "paired"
	AttrMethod     = "method"
	AttrScore      = "score"
	AttrErrorType  = "error_type"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanReconcile   = "ottermatch.reconcile"
	SpanAssignGroup = "ottermatch.assign_group"
	SpanRecover     = "ottermatch.recover"
	SpanOverrides   = "ottermatch.overrides"
)

// Tracer provides tracing for reconciliation stages. The global
// OpenTelemetry provider is a no-op unless the host installs one.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new reconciliation tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartReconcileSpan starts the root span for a run.
func (t *Tracer) StartReconcileSpan(ctx context.Context, runID string, events, groups int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanReconcile,
		trace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.Int(AttrEventCount, events),
			attribute.Int(AttrGroupCount, groups),
		),
	)
}

// StartOverridesSpan starts a span for manual override application.
func (t *Tracer) StartOverridesSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanOverrides)
}

// StartGroupSpan starts a span for assigning one name group.
func (t *Tracer) StartGroupSpan(ctx context.Context, group string, events, files int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanAssignGroup,
		trace.WithAttributes(
			attribute.String(AttrGroup, group),
			attribute.Int(AttrEventCount, events),
			attribute.Int(AttrFileCount, files),
		),
	)
}

// StartRecoverySpan starts a span for cross-group recovery of one event.
func (t *Tracer) StartRecoverySpan(ctx context.Context, eventName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRecover,
		trace.WithAttributes(
			attribute.String(AttrEventName, eventName),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetPairing records the outcome of an assignment.
func (h *SpanHelper) SetPairing(paired int) {
	h.span.SetAttributes(attribute.Int(AttrPaired, paired))
}

// SetMatch records the method and score of a single match.
func (h *SpanHelper) SetMatch(method string, score float64) {
	h.span.SetAttributes(
		attribute.String(AttrMethod, method),
		attribute.Float64(AttrScore, score),
	)
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
