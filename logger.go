package ordsim

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with ordsim-specific field helpers so log output
// stays consistent across the serving path and the batch jobs.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))}
}

// WithOrdID tags the logger with the subject item ID.
func (l *Logger) WithOrdID(id uint64) *Logger {
	return &Logger{Logger: l.Logger.With("ord_id", id)}
}

// WithTier tags the logger with the serving tier.
func (l *Logger) WithTier(tier string) *Logger {
	return &Logger{Logger: l.Logger.With("tier", tier)}
}

// WithComponent tags the logger with a component name ("ingest", "maintain").
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}
