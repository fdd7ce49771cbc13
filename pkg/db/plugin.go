package db

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/plugin"
)

// DatabaseOption configures the Database plugin.
type DatabaseOption func(*Database)

// WithMigrations makes Setup apply the given goose migrations after the
// pool connects.
func WithMigrations(migrations fs.FS) DatabaseOption {
	return func(d *Database) {
		d.migrations = migrations
	}
}

// WithLogger sets the logger used for migration output.
func WithLogger(log *slog.Logger) DatabaseOption {
	return func(d *Database) {
		d.log = log
	}
}

// Database manages the lifecycle of the shared pgx connection pool. Setup
// connects with retry and optionally runs migrations; Teardown closes the
// pool; Health pings and reports pool counters.
type Database struct {
	pool       *pgxpool.Pool
	migrations fs.FS
	log        *slog.Logger
}

// NewDatabase creates a database lifecycle plugin. The pool is not
// connected until Setup runs.
func NewDatabase(opts ...DatabaseOption) *Database {
	d := &Database{log: logger.NewNope()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pool returns the connection pool, or nil before Setup succeeds.
func (d *Database) Pool() *pgxpool.Pool { return d.pool }

func (d *Database) Setup(ctx context.Context, cfg *config.Settings) error {
	dbCfg := FromSettings(cfg)

	pool, err := Connect(ctx, dbCfg)
	if err != nil {
		return err
	}

	if d.migrations != nil {
		if err := Migrate(ctx, pool, d.migrations, dbCfg.MigrationsTable, d.log); err != nil {
			pool.Close()
			return err
		}
	}

	d.pool = pool
	return nil
}

func (d *Database) Teardown(ctx context.Context) error {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

func (d *Database) Health(ctx context.Context) plugin.Status {
	if d.pool == nil {
		return plugin.Unhealthy(ErrNotConnected)
	}
	if err := d.pool.Ping(ctx); err != nil {
		return plugin.Unhealthy(err)
	}
	stat := d.pool.Stat()
	return plugin.Healthy(map[string]any{
		"total_conns": stat.TotalConns(),
		"idle_conns":  stat.IdleConns(),
		"max_conns":   stat.MaxConns(),
	})
}
