// Package log wraps log/slog with a component-scoped logger, shared field
// names and a request-scoped logger carried in the context.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is a slog.Logger that stamps every record with its component.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

func newLogger(base *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// Default wraps the current slog default under the app component.
func Default() *Logger {
	return newLogger(slog.Default(), ComponentApp)
}

// NewText returns a text logger writing to w at level.
func NewText(w io.Writer, level slog.Level, component string) *Logger {
	return newLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), component)
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return NewText(io.Discard, slog.LevelError+1, "discard")
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
// Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// With returns a logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.base.With(args...), l.component)
}

// WithComponent returns a logger for another component. The component is
// replaced, not appended.
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs logger as the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.base)
}
