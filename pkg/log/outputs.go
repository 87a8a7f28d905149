package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes log entries to stderr, or to a custom writer.
// CLI commands keep stdout for their own output.
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errorWriter   io.Writer
	errorToStderr bool
}

// ConsoleOutputOption configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// WithErrorToStderr sends error and fatal entries to stderr even when a
// custom writer is set.
func WithErrorToStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorToStderr = true
	}
}

// WithCustomWriter routes entries to w.
func WithCustomWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.writer = w
	}
}

// WithCustomErrorWriter routes error and fatal entries to w.
func WithCustomErrorWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorWriter = w
	}
}

// NewConsoleOutput creates a ConsoleOutput.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{}
	for _, option := range options {
		option(o)
	}
	return o
}

// Write writes the formatted entry.
func (o *ConsoleOutput) Write(entry *Entry, formattedEntry []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var w io.Writer = os.Stderr
	if o.writer != nil {
		w = o.writer
	}
	if entry.Level >= ErrorLevel {
		if o.errorWriter != nil {
			w = o.errorWriter
		} else if o.errorToStderr {
			w = os.Stderr
		}
	}
	_, err := w.Write(formattedEntry)
	return err
}

// Close is a no-op.
func (o *ConsoleOutput) Close() error {
	return nil
}

// FileOutput appends entries to a file, opened lazily.
type FileOutput struct {
	mu       sync.Mutex
	filename string
	file     *os.File
}

// NewFileOutput creates a FileOutput for filename.
func NewFileOutput(filename string) *FileOutput {
	return &FileOutput{filename: filename}
}

// Write appends the formatted entry to the file.
func (o *FileOutput) Write(_ *Entry, formattedEntry []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		if err := os.MkdirAll(filepath.Dir(o.filename), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(o.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		o.file = f
	}
	_, err := o.file.Write(formattedEntry)
	return err
}

// Close closes the underlying file.
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}

// NullOutput discards everything.
type NullOutput struct{}

// NewNullOutput creates a NullOutput.
func NewNullOutput() *NullOutput { return &NullOutput{} }

// Write discards the entry.
func (o *NullOutput) Write(*Entry, []byte) error { return nil }

// Close is a no-op.
func (o *NullOutput) Close() error { return nil }
