// Package telemetry carries the simulation core's warning/error/progress
// events out to a host-supplied sink, independent of how that host chooses
// to store or display them.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerProvider backs every Recorder until WithTracer overrides it.
// It carries no span processor/exporter, so spans are created and sampled
// but go nowhere until a host attaches one. Registered as the global
// provider so a host can also reach it through otel.Tracer directly.
var defaultTracerProvider = sdktrace.NewTracerProvider()

func init() {
	otel.SetTracerProvider(defaultTracerProvider)
}

// Severity classifies an Event the way simerrors.Severity classifies a
// validation issue, plus an Info level for routine progress notices.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one telemetry record. Type is a stable, dot-free identifier
// (e.g. "ResourceDirtyToleranceSaturated") so hosts can filter or alert on
// it without parsing Message.
type Event struct {
	Type          string
	Severity      Severity
	Message       string
	Fields        map[string]any
	Timestamp     time.Time
	CorrelationID string
}

// Sink receives telemetry events. Implementations must not block the
// caller for long: the resource engine and coordinator emit synchronously
// on the hot tick path.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// Filter decides whether a Sink should receive a given Event, mirroring the
// coordinator's need to route only a subset of events to expensive sinks.
type Filter interface {
	Accept(event Event) bool
}

// SeverityFilter accepts events at or above a minimum severity.
type SeverityFilter struct {
	Min Severity
}

var severityRank = map[Severity]int{
	SeverityInfo:    0,
	SeverityWarning: 1,
	SeverityError:   2,
}

func (f SeverityFilter) Accept(event Event) bool {
	return severityRank[event.Severity] >= severityRank[f.Min]
}

// Recorder fans an Event out to every registered Sink, applying each sink's
// optional Filter first. A nil Recorder is valid and discards everything,
// so callers may wire telemetry optionally without nil-checking at every
// call site.
type Recorder struct {
	entries []sinkEntry
	tracer  trace.Tracer
}

type sinkEntry struct {
	sink   Sink
	filter Filter
}

// NewRecorder builds a Recorder that fans out to sinks unconditionally. Use
// Chain to attach per-sink filters. Spans go through defaultTracerProvider
// (no exporter attached) until WithTracer attaches a real one.
func NewRecorder(sinks ...Sink) *Recorder {
	r := &Recorder{tracer: otel.Tracer("idle-simcore")}
	for _, s := range sinks {
		r.entries = append(r.entries, sinkEntry{sink: s})
	}
	return r
}

// Chain attaches sink with an optional filter and returns the Recorder for
// fluent construction.
func (r *Recorder) Chain(sink Sink, filter Filter) *Recorder {
	if r == nil {
		return nil
	}
	r.entries = append(r.entries, sinkEntry{sink: sink, filter: filter})
	return r
}

// WithTracer attaches tracer, used by StartSpan, and returns the Recorder
// for fluent construction. A nil tracer restores the exporter-less default.
func (r *Recorder) WithTracer(tracer trace.Tracer) *Recorder {
	if r == nil {
		return nil
	}
	if tracer == nil {
		tracer = otel.Tracer("idle-simcore")
	}
	r.tracer = tracer
	return r
}

// StartSpan opens a span named name through the attached tracer, letting a
// host observe updateForStep and parse() as spans once it wires a real
// exporter via WithTracer. Safe to call on a nil Recorder.
func (r *Recorder) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if r == nil || r.tracer == nil {
		return otel.Tracer("idle-simcore").Start(ctx, name)
	}
	return r.tracer.Start(ctx, name)
}

// Emit records an event against every sink whose filter accepts it. Safe to
// call on a nil Recorder. A blank CorrelationID is assigned a fresh uuid so
// every emitted event can be correlated across sinks and spans.
func (r *Recorder) Emit(ctx context.Context, event Event) {
	if r == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}
	for _, entry := range r.entries {
		if entry.filter != nil && !entry.filter.Accept(event) {
			continue
		}
		entry.sink.Record(ctx, event)
	}
}

// Warn is a convenience wrapper for the common case of a single-field
// warning event.
func (r *Recorder) Warn(ctx context.Context, eventType, message string, fields map[string]any) {
	r.Emit(ctx, Event{Type: eventType, Severity: SeverityWarning, Message: message, Fields: fields})
}

// Errorf is a convenience wrapper for a single-field error event.
func (r *Recorder) Errorf(ctx context.Context, eventType, message string, fields map[string]any) {
	r.Emit(ctx, Event{Type: eventType, Severity: SeverityError, Message: message, Fields: fields})
}

// Progress is a convenience wrapper for a single-field info event.
func (r *Recorder) Progress(ctx context.Context, eventType, message string, fields map[string]any) {
	r.Emit(ctx, Event{Type: eventType, Severity: SeverityInfo, Message: message, Fields: fields})
}
