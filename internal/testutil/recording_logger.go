// Package testutil provides shared test doubles for caseintel packages.
package testutil

import (
	"strings"
	"sync"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
)

// LogEntry is a single captured log call.
type LogEntry struct {
	Level   string
	Name    string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field and whether it was present.
// Fields attached via With are included.
func (e LogEntry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// recordingCore is the shared sink behind a RecordingLogger and all of its
// With/Named children.
type recordingCore struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *recordingCore) append(e LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

// RecordingLogger implements logging.Logger and captures every entry for
// later assertions. Child loggers created through With and Named write to
// the same sink as the root, so a test holding the root sees entries logged
// anywhere in the component under test. Fatal records the entry without
// exiting the process.
type RecordingLogger struct {
	core *recordingCore
	name string
	with []logging.Field
}

// NewRecordingLogger returns an empty root RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{core: &recordingCore{}}
}

func (l *RecordingLogger) log(level, msg string, fields []logging.Field) {
	merged := make([]logging.Field, 0, len(l.with)+len(fields))
	merged = append(merged, l.with...)
	merged = append(merged, fields...)
	l.core.append(LogEntry{Level: level, Name: l.name, Message: msg, Fields: merged})
}

// Debug implements logging.Logger.
func (l *RecordingLogger) Debug(msg string, fields ...logging.Field) { l.log("debug", msg, fields) }

// Info implements logging.Logger.
func (l *RecordingLogger) Info(msg string, fields ...logging.Field) { l.log("info", msg, fields) }

// Warn implements logging.Logger.
func (l *RecordingLogger) Warn(msg string, fields ...logging.Field) { l.log("warn", msg, fields) }

// Error implements logging.Logger.
func (l *RecordingLogger) Error(msg string, fields ...logging.Field) { l.log("error", msg, fields) }

// Fatal implements logging.Logger. Unlike the production logger it does not
// exit, so startup failure paths stay testable.
func (l *RecordingLogger) Fatal(msg string, fields ...logging.Field) { l.log("fatal", msg, fields) }

// With implements logging.Logger. The child shares the parent's sink.
func (l *RecordingLogger) With(fields ...logging.Field) logging.Logger {
	child := &RecordingLogger{core: l.core, name: l.name}
	child.with = append(append([]logging.Field{}, l.with...), fields...)
	return child
}

// Named implements logging.Logger, extending the logger name the way the
// zap-backed logger does ("app" becomes "app.http").
func (l *RecordingLogger) Named(name string) logging.Logger {
	child := &RecordingLogger{core: l.core, with: l.with}
	if l.name == "" {
		child.name = name
	} else {
		child.name = l.name + "." + name
	}
	return child
}

// Entries returns a copy of everything captured so far, in log order.
func (l *RecordingLogger) Entries() []LogEntry {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	out := make([]LogEntry, len(l.core.entries))
	copy(out, l.core.entries)
	return out
}

// EntriesAt returns the captured entries at the given level.
func (l *RecordingLogger) EntriesAt(level string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether an entry at the given level carries the exact message.
func (l *RecordingLogger) Has(level, msg string) bool {
	for _, e := range l.EntriesAt(level) {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// HasContaining reports whether any entry at the given level has a message
// containing the substring.
func (l *RecordingLogger) HasContaining(level, substr string) bool {
	for _, e := range l.EntriesAt(level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Reset discards all captured entries.
func (l *RecordingLogger) Reset() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.entries = nil
}
