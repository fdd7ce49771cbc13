package worker

import (
	"context"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/db"
	"github.com/bedrockapp/bedrock/pkg/plugin"
)

// Pool runs the job manager as a lifecycle plugin over the shared database
// plugin. With WORKER_ENABLED=false it stays dormant and healthy.
//
// The database plugin must be registered before this one so its pool exists
// by the time Setup runs; River stores its queue in the same database.
type Pool struct {
	database *db.Database
	opts     []Option
	manager  *Manager
	enabled  bool
}

// NewPool creates the worker plugin. Task and queue options are applied
// when the manager is built during Setup.
func NewPool(database *db.Database, opts ...Option) *Pool {
	return &Pool{database: database, opts: opts}
}

// Manager returns the underlying job manager, or nil before Setup runs
// with the worker enabled.
func (p *Pool) Manager() *Manager { return p.manager }

func (p *Pool) Setup(ctx context.Context, cfg *config.Settings) error {
	p.enabled = cfg.WorkerEnabled
	if !p.enabled {
		return nil
	}

	opts := append([]Option{WithMaxWorkers(cfg.WorkerMaxWorkers)}, p.opts...)
	manager, err := NewManager(p.database.Pool(), opts...)
	if err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	p.manager = manager
	return nil
}

func (p *Pool) Teardown(ctx context.Context) error {
	if p.manager == nil {
		return nil
	}
	err := p.manager.Stop(ctx)
	p.manager = nil
	return err
}

func (p *Pool) Health(ctx context.Context) plugin.Status {
	if !p.enabled {
		return plugin.Healthy(map[string]any{"enabled": false})
	}
	if p.manager == nil {
		return plugin.Unhealthy(ErrNotStarted)
	}
	if err := p.manager.Healthcheck(ctx); err != nil {
		return plugin.Unhealthy(err)
	}
	return plugin.Healthy(map[string]any{
		"enabled": true,
		"tasks":   p.manager.Tasks(),
	})
}
