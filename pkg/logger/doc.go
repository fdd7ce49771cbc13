// Package logger builds slog loggers with context-aware attribute
// extraction and optional Sentry forwarding.
//
// New creates a stdout logger (JSON by default). ContextExtractor
// functions run on every log call and pull request-scoped values such as
// the request id out of the context, so handlers and services never have
// to thread those attributes manually:
//
//	log := logger.New(logger.Config{Level: "info"},
//		middlewares.RequestIDExtractor(),
//	)
//
// WithSentry additionally fans records out to Sentry: errors as events,
// warnings as Sentry logs. The Sentry SDK must be initialized separately.
package logger
