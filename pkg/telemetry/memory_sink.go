package telemetry

import (
	"context"
	"sync"
)

// MemorySink records events in order for test assertions.
type MemorySink struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
}

// Snapshot returns a copy of the recorded events so callers can range over
// them without holding the sink's lock.
func (s *MemorySink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}
