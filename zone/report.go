package zone

import (
	"log"
	"sync"
)

// Level classifies reporter events.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is a single non-fatal pipeline observation: a skipped attribute, a
// point outside every zone, a normalization that was not applied.
type Event struct {
	Level   Level
	Message string
}

// Reporter receives pipeline events. It is injected per pipeline run rather
// than held as process-wide state, so concurrent runs never share a sink.
type Reporter interface {
	Emit(Event)
}

// LogReporter writes events to the standard logger.
type LogReporter struct{}

func (LogReporter) Emit(e Event) {
	log.Printf("[%s] %s", e.Level, e.Message)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Emit(Event) {}

// CollectReporter records events for inspection in tests.
type CollectReporter struct {
	mu     sync.Mutex
	events []Event
}

func (r *CollectReporter) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *CollectReporter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}
