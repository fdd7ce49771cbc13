package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type managerConfig struct {
	registry   *registry
	queues     map[string]int
	schedules  []schedule
	logger     *slog.Logger
	maxWorkers int
}

type schedule struct {
	name    string
	expr    string
	handler func(context.Context) error
}

func newManagerConfig() *managerConfig {
	return &managerConfig{
		registry: newRegistry(),
		queues:   make(map[string]int),
	}
}

// Option configures the Manager.
type Option func(*managerConfig)

// WithTask registers a task handler. The payload type is inferred from the
// Handle signature:
//
//	type sendWelcome struct{ mailer Mailer }
//
//	func (t *sendWelcome) Name() string { return "send_welcome" }
//	func (t *sendWelcome) Handle(ctx context.Context, p WelcomePayload) error { ... }
//
//	worker.WithTask(&sendWelcome{mailer})
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *managerConfig) {
		c.registry.register(task.Name(), &typedTask[P, T]{task: task})
	}
}

// WithScheduledTask registers a periodic task. Schedule() returns a
// five-field cron expression (min hour dom month dow).
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *managerConfig) {
		c.schedules = append(c.schedules, schedule{
			name:    task.Name(),
			expr:    task.Schedule(),
			handler: task.Handle,
		})
	}
}

// WithQueue declares a named queue with its own worker count.
func WithQueue(name string, workers int) Option {
	return func(c *managerConfig) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the logger for job processing.
func WithLogger(l *slog.Logger) Option {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers caps concurrency on the default queue.
func WithMaxWorkers(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// EnqueueOption configures a single enqueue call.
type EnqueueOption func(*enqueueConfig)

type enqueueConfig struct {
	queue       string
	scheduledAt *time.Time
	maxAttempts int
	priority    int
	uniqueFor   time.Duration
	tags        []string
}

// InQueue routes the job to a named queue instead of the default one.
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt delays the job until the given time.
func ScheduledAt(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) {
		c.scheduledAt = &t
	}
}

// ScheduledIn delays the job by the given duration.
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		t := time.Now().Add(d)
		c.scheduledAt = &t
	}
}

// MaxAttempts caps retries for the job.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Priority sets job priority; lower runs first.
func Priority(p int) EnqueueOption {
	return func(c *enqueueConfig) {
		c.priority = p
	}
}

// UniqueFor deduplicates jobs with identical args within the period.
func UniqueFor(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		c.uniqueFor = d
	}
}

// Tags attaches metadata tags for filtering and monitoring.
func Tags(tags ...string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.tags = append(c.tags, tags...)
	}
}

func (c *enqueueConfig) insertOpts() *river.InsertOpts {
	opts := &river.InsertOpts{}
	if c.queue != "" {
		opts.Queue = c.queue
	}
	if c.scheduledAt != nil {
		opts.ScheduledAt = *c.scheduledAt
	}
	if c.maxAttempts > 0 {
		opts.MaxAttempts = c.maxAttempts
	}
	if c.priority > 0 {
		opts.Priority = c.priority
	}
	if len(c.tags) > 0 {
		opts.Tags = c.tags
	}
	if c.uniqueFor > 0 {
		opts.UniqueOpts = river.UniqueOpts{ByPeriod: c.uniqueFor}
	}
	return opts
}
