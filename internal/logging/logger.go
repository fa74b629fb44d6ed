// Package logging provides the debug log sink injected into the
// orchestrator, backends and optimizer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the sink orchestration components write progress to.
type Logger interface {
	Log(format string, args ...any)
}

// DebugLogger writes timestamped lines to a writer. A nil DebugLogger, or
// one without a writer, discards everything.
type DebugLogger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// NewDebugLogger opens (or creates) the log file at path in append mode.
// An empty path yields a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &DebugLogger{w: f, closer: f, now: time.Now}
	l.Log("=== arena debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger logs to an arbitrary writer, e.g. os.Stderr for --verbose.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w, now: time.Now}
}

// Nop returns a logger that discards everything.
func Nop() *DebugLogger {
	return &DebugLogger{}
}

func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || l.w == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now
	if l.now != nil {
		now = l.now
	}
	fmt.Fprintf(l.w, "[%s] %s\n", now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	if f, ok := l.w.(*os.File); ok {
		f.Sync()
	}
}

// Close closes the underlying file, if the logger owns one.
func (l *DebugLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closer.Close()
}

// Tee fans a log line out to several loggers.
type Tee []Logger

func (t Tee) Log(format string, args ...any) {
	for _, l := range t {
		if l != nil {
			l.Log(format, args...)
		}
	}
}
