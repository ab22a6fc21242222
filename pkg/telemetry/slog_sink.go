package telemetry

import (
	"context"

	"github.com/hansjm10/idle-simcore/internal/infrastructure/logger"
)

// SlogSink writes events through the shared structured logger. A host
// attaches it to a Recorder; a component given no Recorder discards its
// events.
type SlogSink struct {
	log *logger.Logger
}

// NewSlogSink wraps log. A nil log falls back to the package default
// logger.
func NewSlogSink(log *logger.Logger) *SlogSink {
	if log == nil {
		log = logger.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) Record(_ context.Context, event Event) {
	args := make([]any, 0, len(event.Fields)*2+4)
	args = append(args, "type", event.Type, "correlationId", event.CorrelationID)
	for k, v := range event.Fields {
		args = append(args, k, v)
	}

	switch event.Severity {
	case SeverityError:
		s.log.Error(event.Message, args...)
	case SeverityWarning:
		s.log.Warn(event.Message, args...)
	default:
		s.log.Info(event.Message, args...)
	}
}
