// Package logging provides structured logging for wikisync using slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger *slog.Logger
)

// Options configures the logger behavior.
type Options struct {
	// Level sets the minimum log level. Defaults to slog.LevelWarn, so a
	// plain sync run prints only its summary.
	Level slog.Level
	// Output sets the output destination. Defaults to os.Stderr.
	Output io.Writer
	// JSON enables JSON output format.
	JSON bool
	// AddSource includes source file and line in log output.
	AddSource bool
}

// DefaultOptions returns options suitable for CLI usage.
func DefaultOptions() Options {
	return Options{Level: slog.LevelWarn, Output: os.Stderr}
}

// LevelFor maps the CLI verbosity flags to a log level. Debug wins over
// verbose.
func LevelFor(verbose, debug bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// New creates a new logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(opts.Output, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(opts.Output, handlerOpts))
}

// Default returns the process logger. Until SetDefault is called it writes
// warnings and errors as text to stderr.
func Default() *slog.Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultOptions())
	}
	return defaultLogger
}

// SetDefault replaces the process logger and installs it as slog's default.
func SetDefault(logger *slog.Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	slog.SetDefault(logger)
}

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level using the default logger.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Attribute keys shared by every package.
const (
	KeyPage      = "page"
	KeyWiki      = "wiki"
	KeyDirection = "direction"
	KeyRevision  = "revision"
	KeyPath      = "path"
	KeyOperation = "operation"
	KeyState     = "state"
	KeyCount     = "count"
	KeyError     = "error"
	KeyDuration  = "duration"
)

// Page returns a slog attribute naming a page, canonical or concrete.
func Page(name string) slog.Attr {
	return slog.String(KeyPage, name)
}

// Wiki returns a slog attribute naming a wiki by interwiki name or token.
func Wiki(name string) slog.Attr {
	return slog.String(KeyWiki, name)
}

// Direction returns a slog attribute for the sync direction.
func Direction(d fmt.Stringer) slog.Attr {
	return slog.String(KeyDirection, d.String())
}

// Revision returns a slog attribute for a page revision.
func Revision(rev int) slog.Attr {
	return slog.Int(KeyRevision, rev)
}

// Path returns a slog attribute for a file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Operation returns a slog attribute for the operation being performed.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// State returns a slog attribute for an engine state.
func State(s fmt.Stringer) slog.Attr {
	return slog.String(KeyState, s.String())
}

// Err returns a slog attribute for err. A nil error yields an empty
// attribute, which handlers omit.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}

// Count returns a slog attribute for item counts.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Duration returns a slog attribute for elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Timer measures how long an operation takes.
type Timer struct {
	logger *slog.Logger
	op     string
	start  time.Time
}

// StartTimer starts timing op. A nil logger uses the default logger.
func StartTimer(logger *slog.Logger, op string) *Timer {
	if logger == nil {
		logger = Default()
	}
	return &Timer{logger: logger, op: op, start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop(args ...any) time.Duration {
	elapsed := t.Elapsed()
	args = append([]any{Operation(t.op), Duration(elapsed)}, args...)
	t.logger.Debug("operation finished", args...)
	return elapsed
}
