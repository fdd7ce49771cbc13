package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bedrockapp/bedrock/pkg/config"
)

// Outcome records the result of one plugin's setup during the most recent
// setup pass.
type Outcome struct {
	Name string
	Err  error
}

type entry struct {
	name   string
	plugin Plugin
}

// Manager holds named plugins in registration order and drives their
// lifecycle: setup in registration order, teardown in reverse, aggregated
// health reporting.
//
// Registration, Setup, and Teardown happen on the single-threaded
// startup/shutdown path and must not run concurrently with each other.
// Health may be called from request handlers once Setup has returned.
type Manager struct {
	log      *slog.Logger
	entries  []entry
	outcomes []Outcome
	setupRan bool
}

// NewManager creates an empty manager. A nil logger disables logging.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{log: log}
}

// Register appends a plugin under the given name. Registration order defines
// setup order and, reversed, teardown order. Duplicate names are not
// rejected; the last registration wins for health reporting.
func (m *Manager) Register(name string, p Plugin) {
	m.entries = append(m.entries, entry{name: name, plugin: p})
	m.log.Debug("registered plugin", slog.String("plugin", name))
}

// Names returns the registration names in order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.name
	}
	return names
}

// Setup runs every plugin's Setup in registration order. A failure (error or
// panic) is logged and recorded but does not stop the remaining plugins:
// one broken dependency must not strand unrelated resources. Returns true
// only if every plugin succeeded; Ready reports the same conjunction
// afterwards.
func (m *Manager) Setup(ctx context.Context, cfg *config.Settings) bool {
	outcomes := make([]Outcome, 0, len(m.entries))
	for _, e := range m.entries {
		m.log.Debug("setting up plugin", slog.String("plugin", e.name))
		err := guard(func() error { return e.plugin.Setup(ctx, cfg) })
		if err != nil {
			m.log.Error("plugin setup failed",
				slog.String("plugin", e.name),
				slog.Any("error", err),
			)
		}
		outcomes = append(outcomes, Outcome{Name: e.name, Err: err})
	}

	m.outcomes = outcomes
	m.setupRan = true
	return m.Ready()
}

// Teardown runs every plugin's Teardown in reverse registration order
// (last set up, first torn down), with the same fail-open semantics as
// Setup. The manager is not ready afterwards regardless of individual
// results.
func (m *Manager) Teardown(ctx context.Context) bool {
	ok := true
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		m.log.Debug("tearing down plugin", slog.String("plugin", e.name))
		if err := guard(func() error { return e.plugin.Teardown(ctx) }); err != nil {
			m.log.Error("plugin teardown failed",
				slog.String("plugin", e.name),
				slog.Any("error", err),
			)
			ok = false
		}
	}

	m.outcomes = nil
	m.setupRan = false
	return ok
}

// Ready reports whether the most recent setup pass succeeded for every
// registered plugin. It is derived from the recorded outcomes rather than
// tracked as separate state, so it cannot drift from what Setup actually
// observed. Teardown resets it to false.
func (m *Manager) Ready() bool {
	if !m.setupRan {
		return false
	}
	for _, o := range m.outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Outcomes returns the per-plugin results of the most recent setup pass,
// in registration order. Nil after teardown or before the first setup.
func (m *Manager) Outcomes() []Outcome {
	return m.outcomes
}

// ManagerKey is the map key used for the manager's own status entry when
// Health short-circuits because the manager is not ready.
const ManagerKey = "manager"

// Health reports plugin health. When the manager is not ready it returns a
// single error entry under ManagerKey without consulting any plugin. When
// ready, it queries every plugin in registration order, converting a panic
// or unexpected failure into an error entry for that plugin. It never
// panics outward.
func (m *Manager) Health(ctx context.Context) map[string]Status {
	if !m.Ready() {
		return map[string]Status{
			ManagerKey: {Healthy: false, Error: "plugin manager not ready"},
		}
	}

	statuses := make(map[string]Status, len(m.entries))
	for _, e := range m.entries {
		statuses[e.name] = checkHealth(ctx, e.plugin)
	}
	return statuses
}

func checkHealth(ctx context.Context, p Plugin) (s Status) {
	defer func() {
		if r := recover(); r != nil {
			s = Status{Healthy: false, Error: fmt.Sprintf("health check panic: %v", r)}
		}
	}()
	return p.Health(ctx)
}

// guard converts a panic from a plugin call into an error so one misbehaving
// plugin cannot abort the lifecycle pass.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panic: %v", r)
		}
	}()
	return fn()
}
