// Package bedrock is an application bootstrap layer for HTTP services:
// environment-driven settings, a plugin lifecycle (ordered setup,
// reverse teardown, aggregated health), JWT authentication with
// role-based access control, and a pre-wired middleware stack.
//
// A minimal service:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	app, err := bedrock.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	app.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
//		w.Write([]byte("hello"))
//	}, auth.PublicTag)
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
//
// Infrastructure (Postgres, Redis, the Pub/Sub event bus, Sentry, the
// River worker pool and the auth service) is managed as plugins: each sets up from the shared
// settings, reports health, and tears down in reverse order on
// shutdown. Plugins that are not configured stay dormant instead of
// failing, so the same binary runs with any subset of backing services.
//
// Access control is tag-based. Routes registered through Handle carry
// tags; the auth middleware resolves each tag to a role set cached in
// Redis and admits the request only when the caller holds one of the
// required roles. Untagged routes deny everyone (fail closed), and the
// "public" tag opts a route out of authentication entirely.
package bedrock
