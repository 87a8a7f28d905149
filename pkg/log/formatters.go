package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// JSONFormatter formats log entries as JSON.
type JSONFormatter struct {
	TimestampFormat string
	EnableCaller    bool
}

// Format formats the entry as a single JSON line.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = v
	}

	tsFormat := time.RFC3339
	if f.TimestampFormat != "" {
		tsFormat = f.TimestampFormat
	}
	data["timestamp"] = entry.Timestamp.Format(tsFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if f.EnableCaller && entry.Caller != "" {
		data["caller"] = entry.Caller
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

var (
	debugColor = color.New(color.FgBlue)
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	keyColor   = color.New(color.FgCyan)
)

// TextFormatter formats log entries as human-readable text.
type TextFormatter struct {
	TimestampFormat string
	EnableCaller    bool
	DisableColors   bool
}

// NewTextFormatter creates a TextFormatter with a short timestamp.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "15:04:05.000"}
}

// Format formats the entry as text. Fields are sorted by key.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	tsFormat := "2006-01-02T15:04:05.000"
	if f.TimestampFormat != "" {
		tsFormat = f.TimestampFormat
	}

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(f.paint(dimColor, entry.Timestamp.Format(tsFormat)))
	b.WriteByte(' ')
	b.WriteString(f.level(entry.Level))
	if f.EnableCaller && entry.Caller != "" {
		b.WriteString(" (" + f.paint(dimColor, entry.Caller) + ")")
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", f.paint(keyColor, k), entry.Fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (f *TextFormatter) paint(c *color.Color, s string) string {
	if f.DisableColors {
		return s
	}
	return c.Sprint(s)
}

func (f *TextFormatter) level(level Level) string {
	var short string
	var c *color.Color
	switch level {
	case DebugLevel:
		short, c = "DBG", debugColor
	case InfoLevel:
		short, c = "INF", infoColor
	case WarnLevel:
		short, c = "WRN", warnColor
	case ErrorLevel:
		short, c = "ERR", errorColor
	case FatalLevel:
		short, c = "FTL", fatalColor
	default:
		return level.String()
	}
	return f.paint(c, short)
}
