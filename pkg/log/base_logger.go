package log

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// BaseLogger implements Logger.
type BaseLogger struct {
	mu        *sync.RWMutex
	level     Level
	fields    Fields
	formatter Formatter
	outputs   []Output
	hooks     []Hook
}

func (l *BaseLogger) enabled(level Level) bool {
	if l.mu != nil {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}
	return l.level <= level
}

// Debug logs a message at the debug level.
func (l *BaseLogger) Debug(msg string, fields ...Field) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, msg, fieldsToMap(fields))
	}
}

// Info logs a message at the info level.
func (l *BaseLogger) Info(msg string, fields ...Field) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, msg, fieldsToMap(fields))
	}
}

// Warn logs a message at the warn level.
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, msg, fieldsToMap(fields))
	}
}

// Error logs a message at the error level.
func (l *BaseLogger) Error(msg string, fields ...Field) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, msg, fieldsToMap(fields))
	}
}

// Fatal logs a message at the fatal level and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.write(FatalLevel, msg, fieldsToMap(fields))
	os.Exit(1)
}

// Debugf logs at debug level with alternating key-value args.
func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, msg, pairsToMap(args))
	}
}

// Infof logs at info level with alternating key-value args.
func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, msg, pairsToMap(args))
	}
}

// Warnf logs at warn level with alternating key-value args.
func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, msg, pairsToMap(args))
	}
}

// Errorf logs at error level with alternating key-value args.
func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, msg, pairsToMap(args))
	}
}

// WithField returns a child logger carrying key=value.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a child logger carrying fields.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	child := &BaseLogger{
		mu:        l.mu,
		level:     l.GetLevel(),
		formatter: l.formatter,
		outputs:   l.outputs,
		hooks:     l.hooks,
		fields:    make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// With returns a child logger carrying fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	return l.WithFields(fieldsToMap(fields))
}

// WithError returns a child logger carrying the error text.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// WithContext returns a child logger carrying the run id found in ctx.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(contextFields(ctx))
}

// WithComponent tags logs with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) {
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	l.level = level
}

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level {
	if l.mu != nil {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}
	return l.level
}

func fieldsToMap(fields []Field) Fields {
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func pairsToMap(args []interface{}) Fields {
	m := make(Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		if i+1 < len(args) {
			m[key] = args[i+1]
		} else {
			m[fmt.Sprintf("arg%d", i)] = args[i]
		}
	}
	return m
}

func (l *BaseLogger) write(level Level, msg string, fields Fields) {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    merged,
		Timestamp: time.Now(),
		Caller:    caller(3),
	}

	for _, hook := range l.hooks {
		for _, hl := range hook.Levels() {
			if hl == level {
				if err := hook.Fire(entry); err != nil {
					fmt.Fprintf(os.Stderr, "log hook failed: %v\n", err)
				}
				break
			}
		}
	}

	formatted, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log format failed: %v\n", err)
		return
	}
	for _, output := range l.outputs {
		if err := output.Write(entry, formatted); err != nil {
			fmt.Fprintf(os.Stderr, "log write failed: %v\n", err)
		}
	}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}
