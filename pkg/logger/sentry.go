package logger

import (
	"context"
	"log/slog"

	sentryslog "github.com/getsentry/sentry-go/slog"
)

// WithSentry creates a logger that writes to stdout and, when sendToSentry
// is true, also forwards warnings and errors to Sentry. Errors become Sentry
// events, warnings are sent as logs. The Sentry SDK must be initialized
// before the returned logger is used.
func WithSentry(cfg Config, sendToSentry bool, extractors ...ContextExtractor) *slog.Logger {
	stdout := baseHandler(cfg)
	if !sendToSentry {
		return slog.New(NewContextHandler(stdout, extractors...))
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(NewContextHandler(newFanoutHandler(stdout, sentryHandler), extractors...))
}
