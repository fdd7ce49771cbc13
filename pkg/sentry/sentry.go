package sentry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/plugin"
)

var ErrInitFailed = errors.New("sentry: failed to initialize client")

const flushTimeout = 2 * time.Second

// Reporter manages the Sentry SDK lifecycle. When no DSN is configured the
// plugin stays dormant: Setup succeeds, nothing is sent, and Health reports
// healthy with configured=false so a missing DSN never blocks readiness.
type Reporter struct {
	initialized bool
	configured  bool
}

func NewReporter() *Reporter {
	return &Reporter{}
}

// Enabled reports whether events are actually being sent.
func (r *Reporter) Enabled() bool { return r.initialized }

func (r *Reporter) Setup(ctx context.Context, cfg *config.Settings) error {
	r.configured = cfg.SentryDSN != ""
	if !r.configured {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.AppName + "@" + cfg.AppVersion,
		EnableLogs:       true,
		TracesSampleRate: cfg.SentryTracesSampleRate,
		// Health probes fire constantly and would drown real traffic in
		// the transaction stream.
		TracesSampler: func(tctx sentry.SamplingContext) float64 {
			if strings.Contains(tctx.Span.Name, "/health") {
				return 0
			}
			return cfg.SentryTracesSampleRate
		},
	})
	if err != nil {
		return errors.Join(ErrInitFailed, err)
	}

	r.initialized = true
	return nil
}

func (r *Reporter) Teardown(ctx context.Context) error {
	if r.initialized {
		sentry.Flush(flushTimeout)
		r.initialized = false
	}
	return nil
}

func (r *Reporter) Health(ctx context.Context) plugin.Status {
	return plugin.Healthy(map[string]any{
		"configured":  r.configured,
		"initialized": r.initialized,
	})
}

// CaptureErr reports an error to Sentry when the SDK is active. Safe to call
// whether or not Setup ran.
func CaptureErr(err error) {
	if err == nil {
		return
	}
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.CaptureException(err)
	}
}

var _ plugin.Plugin = (*Reporter)(nil)
