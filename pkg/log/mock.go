package log

import (
	"context"
	"strings"
	"sync"
)

// TestEntry represents a captured log entry for testing
type TestEntry struct {
	Level   Level
	Message string
	Fields  Fields
}

// TestLogger captures entries in memory so tests can assert on them.
// Children created with With* share the parent's capture buffer.
type TestLogger struct {
	sink   *testSink
	fields Fields
	level  Level
}

type testSink struct {
	mu      sync.Mutex
	entries []TestEntry
}

// NewTestLogger creates a TestLogger at debug level.
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}, fields: Fields{}, level: DebugLevel}
}

// GetEntries returns a copy of all captured entries.
func (l *TestLogger) GetEntries() []TestEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]TestEntry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

// HasMessage reports whether any entry at level contains substr.
func (l *TestLogger) HasMessage(level Level, substr string) bool {
	for _, e := range l.GetEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func (l *TestLogger) record(level Level, msg string, fields Fields) {
	if level < l.level {
		return
	}
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.sink.mu.Lock()
	l.sink.entries = append(l.sink.entries, TestEntry{Level: level, Message: msg, Fields: merged})
	l.sink.mu.Unlock()
}

func (l *TestLogger) Debug(msg string, fields ...Field) { l.record(DebugLevel, msg, fieldsToMap(fields)) }
func (l *TestLogger) Info(msg string, fields ...Field)  { l.record(InfoLevel, msg, fieldsToMap(fields)) }
func (l *TestLogger) Warn(msg string, fields ...Field)  { l.record(WarnLevel, msg, fieldsToMap(fields)) }
func (l *TestLogger) Error(msg string, fields ...Field) { l.record(ErrorLevel, msg, fieldsToMap(fields)) }

// Fatal records the entry without exiting.
func (l *TestLogger) Fatal(msg string, fields ...Field) { l.record(FatalLevel, msg, fieldsToMap(fields)) }

func (l *TestLogger) Debugf(msg string, args ...interface{}) { l.record(DebugLevel, msg, pairsToMap(args)) }
func (l *TestLogger) Infof(msg string, args ...interface{})  { l.record(InfoLevel, msg, pairsToMap(args)) }
func (l *TestLogger) Warnf(msg string, args ...interface{})  { l.record(WarnLevel, msg, pairsToMap(args)) }
func (l *TestLogger) Errorf(msg string, args ...interface{}) { l.record(ErrorLevel, msg, pairsToMap(args)) }

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

func (l *TestLogger) WithFields(fields Fields) Logger {
	child := &TestLogger{sink: l.sink, level: l.level, fields: make(Fields, len(l.fields)+len(fields))}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *TestLogger) With(fields ...Field) Logger { return l.WithFields(fieldsToMap(fields)) }

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(contextFields(ctx))
}

func (l *TestLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

func (l *TestLogger) SetLevel(level Level) { l.level = level }
func (l *TestLogger) GetLevel() Level      { return l.level }
