// Package redis wraps [github.com/redis/go-redis/v9] with URL validation,
// startup retry, and lifecycle management.
//
// Open dials a redis:// or rediss:// URL with pooling defaults tuned via
// functional options:
//
//	client, err := redis.Open(ctx, os.Getenv("REDIS_URL"),
//		redis.WithPoolSize(20),
//		redis.WithRetry(5, 3*time.Second),
//	)
//
// Cache adapts the client to the application plugin lifecycle: it connects
// on Setup, pings and reports pool stats from Health, and closes on
// Teardown. Services that need raw Redis access obtain the client through
// Cache.Client after setup has run.
package redis
