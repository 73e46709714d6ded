// Package logger carries a slog-backed Logger through contexts. All
// constructors return the same SlogLogger; they differ only in the handler
// that formats records: Text for logfmt, JSON for log shippers, Pretty for a
// terminal and Nop for tests.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is what workers, the coordinator, the server and the CLI log
// through. Tests substitute Nop or a handler writing to a buffer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// SlogLogger adapts *slog.Logger to Logger.
type SlogLogger struct {
	sl *slog.Logger
}

func New(handler slog.Handler) Logger {
	return &SlogLogger{sl: slog.New(handler)}
}

func handlerOptions(level slog.Level, source bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, AddSource: source}
}

// Default logs logfmt records at info to stderr. FromContext falls back to it.
func Default() Logger {
	return Text(os.Stderr, slog.LevelInfo)
}

func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, handlerOptions(level, false)))
}

// JSON records carry the source location.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, handlerOptions(level, true)))
}

func Pretty(w io.Writer, level slog.Level) Logger {
	return New(NewPrettyHandler(w, handlerOptions(level, false)))
}

func Nop() Logger {
	return New(slog.DiscardHandler)
}

// ForFormat picks a handler by name: "json", "text" or "pretty". Unknown
// names fall back to pretty.
func ForFormat(w io.Writer, format string, level slog.Level) Logger {
	switch strings.ToLower(format) {
	case "json":
		return JSON(w, level)
	case "text":
		return Text(w, level)
	default:
		return Pretty(w, level)
	}
}

type ctxKey struct{}

// FromContext returns the Logger stored by WithContext, or Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.sl.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.sl.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.sl.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.sl.Error(msg, args...) }

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{sl: s.sl.With(args...)}
}

func (s *SlogLogger) WithGroup(name string) Logger {
	return &SlogLogger{sl: s.sl.WithGroup(name)}
}

// ParseLevel maps debug, info, warn(ing) and error to slog levels,
// ignoring case and surrounding space. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
