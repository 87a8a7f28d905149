package log

import "strings"

// RedactionHook replaces the value of sensitive fields. Matching is
// case-insensitive on the field name.
type RedactionHook struct {
	fields map[string]struct{}
}

// DefaultRedactedFields are masked unless the config overrides them.
var DefaultRedactedFields = []string{"token", "authorization", "bot_token", "secret"}

// NewRedactionHook creates a hook masking fields.
func NewRedactionHook(fields []string) *RedactionHook {
	h := &RedactionHook{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		h.fields[strings.ToLower(f)] = struct{}{}
	}
	return h
}

// Levels returns every level.
func (h *RedactionHook) Levels() []Level {
	return []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel}
}

// Fire masks matching fields in place.
func (h *RedactionHook) Fire(entry *Entry) error {
	for k := range entry.Fields {
		if _, ok := h.fields[strings.ToLower(k)]; ok {
			entry.Fields[k] = "[REDACTED]"
		}
	}
	return nil
}
