// Package logging is the structured logger shared by the detection pipeline,
// the HTTP API and the CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger is the pipeline's slog logger. Records emitted while serving an API
// request carry that request's id.
type Logger struct {
	*slog.Logger
}

// New logs to stdout, the destination used by `socdetect serve`. format is
// "text" or anything else for JSON.
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter logs to w. The CLI passes stderr so command output on stdout
// stays parseable. Debug level adds source locations.
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default wraps whatever slog.Default currently is.
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// Discard drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext tags records with the chi request id stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return l.Logger.With(slog.String(FieldRequestID, reqID))
	}
	return l.Logger
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

// WarnContext is used for every degraded store, cache, archive and publish
// failure, so those can be traced back to the request that hit them.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

// With returns a child logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent names the emitting package: "ingestion", "riskscore",
// "nats-handler" and so on.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// ParseLevel maps the logging.level config value. Unknown values mean info;
// config validation rejects them before they get here.
func ParseLevel(level string) slog.Level {
	switch level {
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

// SetDefault routes package-level slog calls, including those made by
// libraries, through l.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
