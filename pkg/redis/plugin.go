package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/plugin"
)

// Cache manages the lifecycle of the shared Redis client. It connects on
// Setup using the configured REDIS_URL, closes the client on Teardown, and
// reports pool statistics from Health.
type Cache struct {
	client redis.UniversalClient
	opts   []Option
}

// NewCache creates a Redis lifecycle plugin. The client is not connected
// until Setup runs.
func NewCache(opts ...Option) *Cache {
	return &Cache{opts: opts}
}

// NewCacheFromClient wraps an already-connected client. Setup becomes a
// no-op; used in tests with an in-process Redis.
func NewCacheFromClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Client returns the underlying client, or nil before Setup succeeds.
func (c *Cache) Client() redis.UniversalClient { return c.client }

func (c *Cache) Setup(ctx context.Context, cfg *config.Settings) error {
	if c.client != nil {
		return nil
	}
	client, err := Open(ctx, cfg.RedisURL, c.opts...)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

func (c *Cache) Teardown(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Cache) Health(ctx context.Context) plugin.Status {
	if c.client == nil {
		return plugin.Unhealthy(ErrNotConnected)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return plugin.Unhealthy(err)
	}
	details := map[string]any{}
	if client, ok := c.client.(*redis.Client); ok {
		stats := client.PoolStats()
		details["total_conns"] = stats.TotalConns
		details["idle_conns"] = stats.IdleConns
	}
	return plugin.Healthy(details)
}
