package plugin

import (
	"context"

	"github.com/bedrockapp/bedrock/pkg/config"
)

// Plugin is a lifecycle-capable component managed by the Manager.
//
// Setup is called once during application startup with the loaded settings,
// Teardown once during shutdown. Health reports the component's current
// status and should be cheap enough to run on every readiness probe.
// Implementations own their resources (connections, clients) exclusively;
// the manager holds only the reference and a registration name.
type Plugin interface {
	Setup(ctx context.Context, cfg *config.Settings) error
	Teardown(ctx context.Context) error
	Health(ctx context.Context) Status
}

// Status describes the health of a single plugin.
type Status struct {
	Healthy bool           `json:"healthy"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Healthy returns a passing status with optional detail fields.
func Healthy(details map[string]any) Status {
	return Status{Healthy: true, Details: details}
}

// Unhealthy returns a failing status carrying the error message.
func Unhealthy(err error) Status {
	s := Status{Healthy: false}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Func adapts three closures into a Plugin. Nil closures are no-ops
// (a nil health closure reports healthy). Useful for tests and for small
// components that do not warrant a dedicated type.
type Func struct {
	SetupFunc    func(ctx context.Context, cfg *config.Settings) error
	TeardownFunc func(ctx context.Context) error
	HealthFunc   func(ctx context.Context) Status
}

func (f Func) Setup(ctx context.Context, cfg *config.Settings) error {
	if f.SetupFunc == nil {
		return nil
	}
	return f.SetupFunc(ctx, cfg)
}

func (f Func) Teardown(ctx context.Context) error {
	if f.TeardownFunc == nil {
		return nil
	}
	return f.TeardownFunc(ctx)
}

func (f Func) Health(ctx context.Context) Status {
	if f.HealthFunc == nil {
		return Status{Healthy: true}
	}
	return f.HealthFunc(ctx)
}
