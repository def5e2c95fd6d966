package provisioning

import (
	"fmt"
	"strings"
	"sync"
)

// RecordingObserver is an Observer that keeps everything it receives. It is
// used by tests and by commands that render output after the fact.
type RecordingObserver struct {
	mu     *sync.Mutex
	lines  *[]string
	events *[]Event
	fields map[string]string
}

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:     &sync.Mutex{},
		lines:  &[]string{},
		events: &[]Event{},
		fields: map[string]string{},
	}
}

func (r *RecordingObserver) add(level, format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.lines = append(*r.lines, level+": "+fmt.Sprintf(format, v...))
}

// Printf implements Logger.
func (r *RecordingObserver) Printf(format string, v ...any) { r.add("log", format, v...) }

// Info implements Observer.
func (r *RecordingObserver) Info(format string, v ...any) { r.add("info", format, v...) }

// Detail implements Observer.
func (r *RecordingObserver) Detail(format string, v ...any) { r.add("detail", format, v...) }

// Warn implements Observer.
func (r *RecordingObserver) Warn(format string, v ...any) { r.add("warn", format, v...) }

// Event implements Observer.
func (r *RecordingObserver) Event(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Fields == nil {
		event.Fields = map[string]string{}
	}
	for k, v := range r.fields {
		if _, ok := event.Fields[k]; !ok {
			event.Fields[k] = v
		}
	}
	*r.events = append(*r.events, event)
}

// WithFields implements Observer. Derived recorders share storage.
func (r *RecordingObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(r.fields)+len(fields))
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: r.mu, lines: r.lines, events: r.events, fields: merged}
}

// Lines returns every message as "level: text".
func (r *RecordingObserver) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), *r.lines...)
}

// Events returns every event received.
func (r *RecordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), *r.events...)
}

// EventsOfType returns the events of type t.
func (r *RecordingObserver) EventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any message contains substr.
func (r *RecordingObserver) Contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
