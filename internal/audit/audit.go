package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// timestampLayout is ISO-8601 with milliseconds in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger appends timestamped lines to an append-only log.
//
// Every method is safe for concurrent use and never returns a write error:
// a failed write is counted and otherwise ignored so that auditing can never
// interrupt message relaying.
type Logger struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	now     func() time.Time
	session string
	dropped atomic.Int64
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// Open opens path in append mode, creating it and its parent directory if
// needed. When the file cannot be opened the returned Logger discards
// everything; Open never fails and never returns nil.
func Open(path string, opts ...Option) *Logger {
	// #nosec G301 -- runtime state directory for local diagnostics.
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		l := NewWriter(io.Discard, opts...)
		l.dropped.Add(1)

		return l
	}

	// #nosec G304 -- path comes from relay configuration.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		l := NewWriter(io.Discard, opts...)
		l.dropped.Add(1)

		return l
	}

	l := NewWriter(f, opts...)
	l.closer = f

	return l
}

// NewWriter creates a Logger over an arbitrary writer.
func NewWriter(w io.Writer, opts ...Option) *Logger {
	l := &Logger{
		w:       w,
		now:     time.Now,
		session: ulid.Make().String(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	return NewWriter(io.Discard)
}

// Session returns the identifier of this relay run.
func (l *Logger) Session() string {
	return l.session
}

// Append writes one entry. Trailing whitespace in text is trimmed so that
// every entry occupies exactly one line terminator.
func (l *Logger) Append(text string) {
	if l == nil {
		return
	}

	text = strings.TrimRight(text, " \t\r\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	line := "[" + l.now().UTC().Format(timestampLayout) + "] " + text + "\n"

	if _, err := io.WriteString(l.w, line); err != nil {
		l.dropped.Add(1)
	}
}

// Appendf formats according to a format specifier and appends the result.
func (l *Logger) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Dropped reports how many entries could not be written.
func (l *Logger) Dropped() int64 {
	if l == nil {
		return 0
	}

	return l.dropped.Load()
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.closer.Close()
	l.closer = nil
	l.w = io.Discard

	return err
}
