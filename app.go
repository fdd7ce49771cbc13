package bedrock

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bedrockapp/bedrock/middlewares"
	"github.com/bedrockapp/bedrock/pkg/auth"
	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/db"
	"github.com/bedrockapp/bedrock/pkg/events"
	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/plugin"
	"github.com/bedrockapp/bedrock/pkg/redis"
	"github.com/bedrockapp/bedrock/pkg/sentry"
	"github.com/bedrockapp/bedrock/pkg/worker"
)

// App wires the infrastructure plugins, the middleware stack and the
// HTTP router into a runnable service. Construct it with New, register
// routes with Handle, then call Run.
type App struct {
	cfg     *config.Settings
	log     *slog.Logger
	manager *plugin.Manager

	database *db.Database
	cache    *redis.Cache
	bus      *events.Bus
	reporter *sentry.Reporter
	workers  *worker.Pool
	auth     *auth.Service

	router    *chi.Mux
	server    *http.Server
	routeTags map[string][]string

	done     chan struct{}
	stopOnce sync.Once

	// collected by options before wiring
	migrations   fs.FS
	workerOpts   []worker.Option
	extraMW      []func(http.Handler) http.Handler
	extraPlugins []namedPlugin
	allowedPaths []string
	requireAuth  bool
	authRoutes   bool
}

type namedPlugin struct {
	name   string
	plugin plugin.Plugin
}

// New builds an App from settings. Plugins are registered in dependency
// order (database, redis, events, sentry, worker, auth) so that setup
// runs forward and teardown runs in reverse.
func New(cfg *config.Settings, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		routeTags:   make(map[string][]string),
		done:        make(chan struct{}),
		requireAuth: true,
		authRoutes:  true,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.WithSentry(
			logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat},
			cfg.SentryDSN != "",
			middlewares.RequestIDExtractor(),
			middlewares.UserIDExtractor(),
		)
	}

	dbOpts := []db.DatabaseOption{db.WithLogger(a.log)}
	if a.migrations != nil {
		dbOpts = append(dbOpts, db.WithMigrations(a.migrations))
	}
	a.database = db.NewDatabase(dbOpts...)
	a.cache = redis.NewCache(redis.WithPoolSize(cfg.RedisPoolSize))
	a.bus = events.NewBus(a.cache, events.WithLogger(a.log))
	a.reporter = sentry.NewReporter()
	a.workers = worker.NewPool(a.database, append([]worker.Option{worker.WithLogger(a.log)}, a.workerOpts...)...)
	a.auth = auth.NewService(a.cache, auth.WithServiceLogger(a.log))

	a.manager = plugin.NewManager(a.log)
	a.manager.Register("database", a.database)
	a.manager.Register("redis", a.cache)
	a.manager.Register("events", a.bus)
	a.manager.Register("sentry", a.reporter)
	a.manager.Register("worker", a.workers)
	a.manager.Register("auth", a.auth)
	for _, p := range a.extraPlugins {
		a.manager.Register(p.name, p.plugin)
	}

	a.buildRouter()
	a.server = &http.Server{
		Addr:           cfg.Addr(),
		Handler:        a.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	return a, nil
}

// buildRouter assembles the middleware chain in its fixed execution
// order (recover, request id, logging, trusted host, CORS, compression,
// auth) and registers the built-in endpoints.
func (a *App) buildRouter() {
	cfg := a.cfg
	r := chi.NewRouter()

	r.Use(middlewares.Recover(a.log))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logging(a.log))
	r.Use(middlewares.TrustedHost(cfg.TrustedHosts))
	if cfg.CORSEnabled {
		corsOpts := []middlewares.CORSOption{
			middlewares.WithAllowOrigins(cfg.CORSOrigins...),
			middlewares.WithAllowMethods(cfg.CORSMethods...),
			middlewares.WithAllowHeaders(cfg.CORSHeaders...),
			middlewares.WithExposeHeaders(cfg.CORSExposeHeaders...),
		}
		if cfg.CORSCredentials {
			corsOpts = append(corsOpts, middlewares.WithAllowCredentials())
		}
		r.Use(middlewares.CORS(corsOpts...))
	}
	if cfg.GzipEnabled {
		r.Use(chimw.Compress(5))
	}
	for _, mw := range a.extraMW {
		r.Use(mw)
	}
	r.Use(middlewares.Auth(a.auth, middlewares.AuthConfig{
		AllowedPaths: a.allowedPaths,
		TagsFor:      a.tagsFor,
		RequireAuth:  a.requireAuth,
		Logger:       a.log,
	}))
	r.Use(middlewares.SentryScope())

	a.router = r

	a.Handle(http.MethodGet, "/health/live", a.handleLive)
	a.Handle(http.MethodGet, "/health/ready", a.handleReady)
	a.Handle(http.MethodGet, "/health", a.handleReady)

	if a.authRoutes {
		auth.NewHandler(a.auth, a.log).Register(a, cfg.APIPrefix)
	}
}

// Handle registers a route with its access tags. Routes without tags
// fall under the fail-closed rule: authenticated or not, nobody passes
// until a tag maps to roles. Built-in health endpoints stay reachable
// through the allowed-path list, not through tags.
func (a *App) Handle(method, pattern string, handler http.HandlerFunc, tags ...string) {
	a.router.Method(method, pattern, handler)
	if len(tags) > 0 {
		a.routeTags[method+" "+pattern] = tags
	}
}

// Get and Post are shorthands for Handle.
func (a *App) Get(pattern string, handler http.HandlerFunc, tags ...string) {
	a.Handle(http.MethodGet, pattern, handler, tags...)
}

func (a *App) Post(pattern string, handler http.HandlerFunc, tags ...string) {
	a.Handle(http.MethodPost, pattern, handler, tags...)
}

// tagsFor resolves the tags of the route matching the request, using
// the router itself so path parameters resolve the same way dispatch
// does.
func (a *App) tagsFor(r *http.Request) ([]string, bool) {
	rctx := chi.NewRouteContext()
	if !a.router.Match(rctx, r.Method, r.URL.Path) {
		return nil, false
	}
	return a.routeTags[r.Method+" "+rctx.RoutePattern()], true
}

func (a *App) handleLive(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

// handleReady reports aggregated plugin health. The response is 503
// until Setup has completed and every plugin reports healthy.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	statuses := a.manager.Health(r.Context())
	healthy := true
	details := make(map[string]any, len(statuses))
	for name, st := range statuses {
		entry := map[string]any{"healthy": st.Healthy}
		if st.Error != "" {
			entry["error"] = st.Error
		}
		for k, v := range st.Details {
			entry[k] = v
		}
		details[name] = entry
		if !st.Healthy {
			healthy = false
		}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, map[string]any{
		"status":  status,
		"app":     a.cfg.AppName,
		"version": a.cfg.AppVersion,
		"plugins": details,
	})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Router exposes the underlying chi router for advanced wiring such as
// mounting sub-routers. Routes added directly carry no tags and are
// denied by the access check unless auth is disabled.
func (a *App) Router() chi.Router { return a.router }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.log }

// DB returns the database plugin. The pool is nil before Run.
func (a *App) DB() *db.Database { return a.database }

// Redis returns the cache plugin. The client is nil before Run.
func (a *App) Redis() *redis.Cache { return a.cache }

// Events returns the Pub/Sub event bus. Unusable before Run.
func (a *App) Events() *events.Bus { return a.bus }

// Auth returns the auth service.
func (a *App) Auth() *auth.Service { return a.auth }

// Workers returns the background worker pool.
func (a *App) Workers() *worker.Pool { return a.workers }

// Plugins returns the plugin manager for health and outcome inspection.
func (a *App) Plugins() *plugin.Manager { return a.manager }

// Addr returns the configured listen address.
func (a *App) Addr() string { return a.cfg.Addr() }
