package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestRecorder_EmitFansOutToAllSinks(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	r := NewRecorder(a, b)

	r.Warn(context.Background(), "ResourceDirtyToleranceSaturated", "tolerance saturated", map[string]any{"index": 3})

	require.Len(t, a.Snapshot(), 1)
	require.Len(t, b.Snapshot(), 1)
	assert.Equal(t, SeverityWarning, a.Snapshot()[0].Severity)
}

func TestRecorder_NilRecorderDiscardsSilently(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Emit(context.Background(), Event{Type: "x"})
	})
}

func TestSeverityFilter_AcceptsAtOrAboveMinimum(t *testing.T) {
	f := SeverityFilter{Min: SeverityWarning}
	assert.False(t, f.Accept(Event{Severity: SeverityInfo}))
	assert.True(t, f.Accept(Event{Severity: SeverityWarning}))
	assert.True(t, f.Accept(Event{Severity: SeverityError}))
}

func TestRecorder_ChainAppliesFilterPerSink(t *testing.T) {
	verbose, quiet := NewMemorySink(), NewMemorySink()
	r := NewRecorder().Chain(verbose, nil).Chain(quiet, SeverityFilter{Min: SeverityError})

	r.Progress(context.Background(), "HydrationAddedIds", "new resource slots added", nil)
	r.Errorf(context.Background(), "ResourceHydrationMismatch", "removed id", nil)

	assert.Len(t, verbose.Snapshot(), 2)
	assert.Len(t, quiet.Snapshot(), 1)
}

func TestRecorder_EmitAssignsCorrelationIDWhenBlank(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	r.Progress(context.Background(), "HydrationAddedIds", "new resource slots added", nil)
	r.Emit(context.Background(), Event{Type: "x", CorrelationID: "caller-supplied"})

	got := sink.Snapshot()
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].CorrelationID)
	assert.Equal(t, "caller-supplied", got[1].CorrelationID)
}

func TestRecorder_StartSpanUsesAttachedTracer(t *testing.T) {
	var r *Recorder
	_, span := r.StartSpan(context.Background(), "nil-recorder-span")
	assert.NotNil(t, span)
	span.End()

	r = NewRecorder()
	_, span = r.StartSpan(context.Background(), "default-tracer-span")
	assert.NotNil(t, span)
	span.End()

	r.WithTracer(otel.Tracer("custom-tracer-for-test"))
	_, span = r.StartSpan(context.Background(), "custom-tracer-span")
	assert.NotNil(t, span)
	span.End()
}
