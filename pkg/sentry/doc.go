// Package sentry wires the Sentry SDK into the plugin lifecycle.
//
// Reporter initializes the SDK on Setup when SENTRY_DSN is set and flushes
// buffered events on Teardown. Without a DSN the plugin is a healthy no-op,
// so local development never needs a Sentry account. Transactions for
// health-probe routes are sampled out.
package sentry
