package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/redis"
)

func TestOpen_EmptyURL(t *testing.T) {
	t.Parallel()

	client, err := redis.Open(context.Background(), "")
	assert.Nil(t, client)
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
}

func TestOpen_InvalidScheme(t *testing.T) {
	t.Parallel()

	for _, url := range []string{
		"http://localhost:6379",
		"localhost:6379",
		"postgres://localhost:5432/db",
	} {
		client, err := redis.Open(context.Background(), url)
		assert.Nil(t, client, url)
		assert.ErrorIs(t, err, redis.ErrFailedToParseURL, url)
	}
}

func TestOpen_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := redis.Open(ctx, "redis://127.0.0.1:1",
		redis.WithRetry(1, 10*time.Millisecond),
		redis.WithDialTimeout(100*time.Millisecond),
	)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestOpen_Connects(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)

	client, err := redis.Open(context.Background(), "redis://"+srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	val, err := client.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	t.Run("nil client", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, redis.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
	})

	t.Run("live client", func(t *testing.T) {
		t.Parallel()
		srv := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, redis.Healthcheck(client)(context.Background()))

		srv.Close()
		assert.ErrorIs(t, redis.Healthcheck(client)(context.Background()), redis.ErrHealthcheckFailed)
	})
}

func TestCacheLifecycle(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)

	cache := redis.NewCache()
	cfg := &config.Settings{RedisURL: "redis://" + srv.Addr()}

	require.NoError(t, cache.Setup(context.Background(), cfg))
	require.NotNil(t, cache.Client())

	status := cache.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Details, "total_conns")

	require.NoError(t, cache.Teardown(context.Background()))
	assert.Nil(t, cache.Client())

	status = cache.Health(context.Background())
	assert.False(t, status.Healthy)
}

func TestCacheFromClient(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})

	cache := redis.NewCacheFromClient(client)

	// Setup must not replace an injected client.
	require.NoError(t, cache.Setup(context.Background(), &config.Settings{}))
	assert.Equal(t, client, cache.Client())

	assert.True(t, cache.Health(context.Background()).Healthy)
	require.NoError(t, cache.Teardown(context.Background()))
}
