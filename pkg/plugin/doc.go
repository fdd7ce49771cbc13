// Package plugin provides ordered lifecycle management for application
// components.
//
// A Plugin is anything with Setup, Teardown, and Health. The Manager keeps
// plugins in registration order — the order encodes dependency direction
// (database before cache before auth) — and drives setup in that order and
// teardown in reverse, so a component never outlives something it depends on.
//
// Lifecycle passes are fail-open: a plugin that errors or panics during setup
// or teardown is logged and recorded, and the pass continues with the
// remaining plugins. This prevents one broken dependency from stranding
// unrelated resources (a Sentry init failure should not leak a Redis
// connection). The cost is that readiness is all-or-nothing: Ready is the
// conjunction of the latest setup outcomes, and a single failed plugin
// leaves the whole manager not ready.
//
// Health short-circuits when the manager is not ready, returning a single
// error entry without touching any plugin. Once ready, it reports one Status
// per plugin keyed by registration name; per-plugin failures become error
// entries rather than propagating.
//
//	mgr := plugin.NewManager(log)
//	mgr.Register("database", dbPlugin)
//	mgr.Register("redis", redisPlugin)
//	mgr.Register("auth", authPlugin)
//
//	if !mgr.Setup(ctx, cfg) {
//	    log.Warn("some plugins failed to initialize, continuing degraded")
//	}
//	defer mgr.Teardown(ctx)
package plugin
