package bedrock

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/bedrockapp/bedrock/pkg/plugin"
	"github.com/bedrockapp/bedrock/pkg/worker"
)

// Option customizes App construction.
type Option func(*App)

// WithLogger replaces the default logger built from the settings.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithMigrations sets the embedded migration filesystem applied by the
// database plugin during setup.
func WithMigrations(migrations fs.FS) Option {
	return func(a *App) { a.migrations = migrations }
}

// WithWorkerOptions forwards options (task registrations, queues,
// schedules) to the background worker pool.
func WithWorkerOptions(opts ...worker.Option) Option {
	return func(a *App) { a.workerOpts = append(a.workerOpts, opts...) }
}

// WithMiddleware appends middleware between the built-in chain and the
// auth middleware, so handlers still see the authenticated identity.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(a *App) { a.extraMW = append(a.extraMW, mw...) }
}

// WithPlugin registers an additional plugin after the built-in ones.
// It participates in ordered setup, reverse teardown and aggregated
// health under the given name.
func WithPlugin(name string, p plugin.Plugin) Option {
	return func(a *App) { a.extraPlugins = append(a.extraPlugins, namedPlugin{name: name, plugin: p}) }
}

// WithAllowedPaths overrides the paths that bypass authentication
// entirely. Entries are exact paths or "/*" prefixes. Include the
// health endpoints or readiness probes will be denied.
func WithAllowedPaths(paths ...string) Option {
	return func(a *App) { a.allowedPaths = paths }
}

// WithOptionalAuth lets unauthenticated requests reach the access check
// instead of being rejected with 401 outright. With no identity the
// fail-closed check still denies every non-public route, so this mainly
// changes the status code probes observe.
func WithOptionalAuth() Option {
	return func(a *App) { a.requireAuth = false }
}

// WithoutAuthRoutes disables the built-in /auth HTTP endpoints. The
// auth service and middleware remain active.
func WithoutAuthRoutes() Option {
	return func(a *App) { a.authRoutes = false }
}
