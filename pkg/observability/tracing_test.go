package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestTracer_SpansWithoutProvider(t *testing.T) {
	tr := NewTracer()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ctx, root := tr.StartReconcileSpan(ctx, "run-1", 10, 3)
		defer root.End()

		_, o := tr.StartOverridesSpan(ctx)
		NewSpanHelper(o).SetPairing(1)
		o.End()

		_, g := tr.StartGroupSpan(ctx, "Weekly Sync", 2, 2)
		h := NewSpanHelper(g)
		h.SetMatch("validated", 0.4)
		h.AddEvent("paired", attribute.String(AttrGroup, "Weekly Sync"))
		h.SetSuccess()
		g.End()

		_, r := tr.StartRecoverySpan(ctx, "Weekly Sync")
		NewSpanHelper(r).SetError(errors.New("boom"), "processing_error", false)
		r.End()
	})
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	tid := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", GetTraceID(ctx))
}
