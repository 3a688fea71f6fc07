package rangeload

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rangeload-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithSubscription tags every record with the list subscription name.
func (l *Logger) WithSubscription(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("subscription", name),
	}
}

// WithQuery tags every record with the query identity.
func (l *Logger) WithQuery(identity string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", identity),
	}
}

// LogRequest logs a window request.
func (l *Logger) LogRequest(ctx context.Context, start, stop uint64, runs int, err error) {
	if err != nil {
		l.WarnContext(ctx, "request failed",
			"start", start,
			"stop", stop,
			"runs", runs,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "request completed",
			"start", start,
			"stop", stop,
			"runs", runs,
		)
	}
}

// LogFetch logs one source fetch.
func (l *Logger) LogFetch(ctx context.Context, from, to uint64, items int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"from", from,
			"to", to,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"from", from,
			"to", to,
			"items", items,
		)
	}
}

// LogDiscard logs fetched items dropped because the list was reset meanwhile.
func (l *Logger) LogDiscard(ctx context.Context, from, to uint64, items int) {
	l.DebugContext(ctx, "stale fetch discarded",
		"from", from,
		"to", to,
		"items", items,
	)
}

// LogReset logs a coverage reset.
func (l *Logger) LogReset(ctx context.Context, generation uint64, reason string) {
	l.InfoContext(ctx, "list reset",
		"generation", generation,
		"reason", reason,
	)
}
