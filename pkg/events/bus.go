package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/plugin"
	"github.com/bedrockapp/bedrock/pkg/redis"
)

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// Bus decouples event producers from consumers over Redis Pub/Sub.
// Register it as a plugin after the Redis cache so the shared client
// exists by the time Setup runs.
type Bus struct {
	cache  *redis.Cache
	client goredis.UniversalClient
	log    *slog.Logger

	mu   sync.Mutex
	subs []*goredis.PubSub
}

// NewBus creates the event bus plugin over the shared Redis cache.
func NewBus(cache *redis.Cache, opts ...Option) *Bus {
	b := &Bus{cache: cache, log: logger.NewNope()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Setup(ctx context.Context, cfg *config.Settings) error {
	client := b.cache.Client()
	if client == nil {
		return ErrNotConnected
	}
	b.client = client
	return nil
}

func (b *Bus) Teardown(ctx context.Context) error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.client = nil
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *Bus) Health(ctx context.Context) plugin.Status {
	if b.client == nil {
		return plugin.Unhealthy(ErrNotConnected)
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return plugin.Unhealthy(err)
	}
	b.mu.Lock()
	n := len(b.subs)
	b.mu.Unlock()
	return plugin.Healthy(map[string]any{"subscriptions": n})
}

// Publish fires the event on the given channel, falling back to the
// event's type when channel is empty. Envelope defaults (id, timestamp,
// status, source) are filled in before serialization.
func (b *Bus) Publish(ctx context.Context, channel string, e Event) error {
	if b.client == nil {
		return ErrNotConnected
	}
	if channel == "" {
		channel = e.Type
	}
	if channel == "" {
		return ErrNoChannel
	}
	e.fillDefaults()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, data).Err()
}

// Subscribe listens on a channel and delivers decoded events until ctx is
// cancelled or the bus tears down. Messages that do not parse as events
// are logged and skipped, never fatal to the subscription.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	if b.client == nil {
		return nil, ErrNotConnected
	}

	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.log.WarnContext(ctx, "dropping malformed event",
						slog.String("channel", channel),
						slog.Any("error", err),
					)
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					_ = sub.Close()
					return
				}
			}
		}
	}()
	return out, nil
}
