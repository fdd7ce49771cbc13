package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment names accepted by Validate.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Deployment platforms accepted by Validate.
const (
	PlatformVPS        = "vps"
	PlatformContainer  = "container"
	PlatformServerless = "serverless"
)

var (
	ErrParse              = errors.New("config: failed to parse environment")
	ErrInvalidEnvironment = errors.New("config: invalid environment")
	ErrInvalidPlatform    = errors.New("config: invalid deployment platform")
	ErrMissingRequired    = errors.New("config: missing required setting")
)

// Settings is the flat application configuration record. It is loaded once at
// process start via Load and must be treated as read-only afterwards.
//
// Slice-valued settings (CORS lists, trusted hosts, JWT algorithms) are parsed
// from comma-separated environment values at the loading boundary; nothing
// downstream ever splits strings.
type Settings struct {
	// Application identity.
	AppName     string `env:"APP_NAME" envDefault:"bedrock"`
	AppVersion  string `env:"APP_VERSION" envDefault:"0.1.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	APIPrefix   string `env:"API_PREFIX" envDefault:"/api/v1"`

	// HTTP server.
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8000"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database.
	DatabaseURL           string        `env:"DATABASE_URL"`
	DatabaseMaxConns      int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseMinConns      int32         `env:"DATABASE_MIN_CONNS" envDefault:"5"`
	DatabaseRetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	DatabaseRetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"5s"`

	// Redis.
	RedisURL      string `env:"REDIS_URL"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisRequired bool   `env:"REDIS_REQUIRED" envDefault:"false"`

	// Identity provider.
	AuthProviderURL string        `env:"AUTH_PROVIDER_URL"`
	AuthAnonKey     string        `env:"AUTH_ANON_KEY"`
	AuthServiceKey  string        `env:"AUTH_SERVICE_KEY"`
	AuthJWKSURL     string        `env:"AUTH_JWKS_URL"`
	AuthAudience    string        `env:"AUTH_AUDIENCE" envDefault:"authenticated"`
	AuthEnabled     bool          `env:"AUTH_ENABLED" envDefault:"true"`
	JWKSCacheTTL    time.Duration `env:"JWKS_CACHE_TTL" envDefault:"1h"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`

	// Local JWT verification (secondary, symmetric-secret path).
	SecretKey     string        `env:"SECRET_KEY"`
	JWTAlgorithms []string      `env:"JWT_ALGORITHMS" envDefault:"HS256"`
	JWTExpiry     time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`

	// CORS.
	CORSEnabled       bool     `env:"CORS_ENABLED" envDefault:"true"`
	CORSOrigins       []string `env:"CORS_ORIGINS" envDefault:"*"`
	CORSMethods       []string `env:"CORS_ALLOW_METHODS" envDefault:"*"`
	CORSHeaders       []string `env:"CORS_ALLOW_HEADERS" envDefault:"*"`
	CORSExposeHeaders []string `env:"CORS_EXPOSE_HEADERS"`
	CORSCredentials   bool     `env:"CORS_CREDENTIALS" envDefault:"true"`

	// Compression and host filtering.
	GzipEnabled  bool     `env:"GZIP_ENABLED" envDefault:"true"`
	GzipMinSize  int      `env:"GZIP_MIN_SIZE" envDefault:"1000"`
	TrustedHosts []string `env:"TRUSTED_HOSTS" envDefault:"*"`

	// Sentry.
	SentryDSN                string  `env:"SENTRY_DSN"`
	SentryTracesSampleRate   float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.1"`
	SentryProfilesSampleRate float64 `env:"SENTRY_PROFILES_SAMPLE_RATE" envDefault:"0.1"`

	// Background worker.
	WorkerEnabled    bool `env:"WORKER_ENABLED" envDefault:"false"`
	WorkerMaxWorkers int  `env:"WORKER_MAX_WORKERS" envDefault:"10"`

	// Role policy seed file (tag -> roles), optional.
	PolicyFile string `env:"POLICY_FILE"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Deployment.
	DeploymentPlatform string `env:"DEPLOYMENT_PLATFORM" envDefault:"container"`
}

// Load reads Settings from the process environment. A .env file in the
// working directory is applied first when present; real environment variables
// always win over file values.
func Load() (*Settings, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, errors.Join(ErrParse, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks enumerated values and the presence of settings that have no
// usable default. It is called by Load; call it directly only when building
// Settings by hand (tests, embedding applications).
func (s *Settings) Validate() error {
	if !slices.Contains([]string{EnvDevelopment, EnvStaging, EnvProduction}, s.Environment) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, s.Environment)
	}

	if !slices.Contains([]string{PlatformVPS, PlatformContainer, PlatformServerless}, s.DeploymentPlatform) {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, s.DeploymentPlatform)
	}

	required := map[string]string{
		"DATABASE_URL":      s.DatabaseURL,
		"REDIS_URL":         s.RedisURL,
		"SECRET_KEY":        s.SecretKey,
		"AUTH_PROVIDER_URL": s.AuthProviderURL,
		"AUTH_ANON_KEY":     s.AuthAnonKey,
		"AUTH_SERVICE_KEY":  s.AuthServiceKey,
	}

	var missing []error
	for name, value := range required {
		if value == "" {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingRequired, name))
		}
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}

	if len(s.JWTAlgorithms) == 0 {
		return fmt.Errorf("%w: JWT_ALGORITHMS", ErrMissingRequired)
	}

	return nil
}

// IsDebug reports whether the application runs in development mode.
func (s *Settings) IsDebug() bool {
	return s.Environment == EnvDevelopment
}

// Addr returns the host:port the HTTP server binds to.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// JWKSEndpoint returns the configured JWKS URL, falling back to the
// provider's well-known location when unset.
func (s *Settings) JWKSEndpoint() string {
	if s.AuthJWKSURL != "" {
		return s.AuthJWKSURL
	}
	return s.AuthProviderURL + "/auth/v1/.well-known/jwks.json"
}
