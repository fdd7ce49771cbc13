package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	Message string `json:"message"`
}

type echoTask struct {
	got []string
}

func (t *echoTask) Name() string { return "echo" }

func (t *echoTask) Handle(_ context.Context, p echoPayload) error {
	t.got = append(t.got, p.Message)
	return nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	_, ok := r.get("echo")
	assert.False(t, ok)

	task := &echoTask{}
	r.register(task.Name(), &typedTask[echoPayload, *echoTask]{task: task})

	ex, ok := r.get("echo")
	require.True(t, ok)

	require.NoError(t, ex.Execute(context.Background(), json.RawMessage(`{"message":"hi"}`)))
	assert.Equal(t, []string{"hi"}, task.got)

	// Empty payload decodes to the zero value.
	require.NoError(t, ex.Execute(context.Background(), nil))
	assert.Equal(t, []string{"hi", ""}, task.got)

	err := ex.Execute(context.Background(), json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	assert.Equal(t, []string{"echo"}, r.names())
}

func TestWithTaskOption(t *testing.T) {
	t.Parallel()

	cfg := newManagerConfig()
	WithTask(&echoTask{})(cfg)

	_, ok := cfg.registry.get("echo")
	assert.True(t, ok)
}

type nightlyTask struct {
	runs int
}

func (t *nightlyTask) Name() string     { return "nightly" }
func (t *nightlyTask) Schedule() string { return "0 3 * * *" }
func (t *nightlyTask) Handle(context.Context) error {
	t.runs++
	return nil
}

func TestWithScheduledTaskOption(t *testing.T) {
	t.Parallel()

	cfg := newManagerConfig()
	WithScheduledTask(&nightlyTask{})(cfg)

	require.Len(t, cfg.schedules, 1)
	assert.Equal(t, "nightly", cfg.schedules[0].name)
	assert.Equal(t, "0 3 * * *", cfg.schedules[0].expr)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	sched, err := ParseSchedule("0 3 * * *")
	require.NoError(t, err)

	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	next := sched.Next(at)
	assert.Equal(t, time.Date(2026, 1, 11, 3, 0, 0, 0, time.UTC), next)

	_, err = ParseSchedule("not a cron expr")
	assert.Error(t, err)

	// Six-field expressions (with seconds) are rejected.
	_, err = ParseSchedule("0 0 3 * * *")
	assert.Error(t, err)
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	at := time.Now().Add(time.Hour)
	args, opts, err := buildArgs("echo", echoPayload{Message: "hi"},
		InQueue("email"),
		ScheduledAt(at),
		MaxAttempts(3),
		Priority(2),
		UniqueFor(time.Minute),
		Tags("t1", "t2"),
	)
	require.NoError(t, err)

	assert.Equal(t, "bedrock:task", args.Kind())
	assert.Equal(t, "echo", args.TaskName)
	assert.JSONEq(t, `{"message":"hi"}`, string(args.Payload))

	assert.Equal(t, "email", opts.Queue)
	assert.Equal(t, at, opts.ScheduledAt)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 2, opts.Priority)
	assert.Equal(t, time.Minute, opts.UniqueOpts.ByPeriod)
	assert.Equal(t, []string{"t1", "t2"}, opts.Tags)
}

func TestBuildArgs_NilPayload(t *testing.T) {
	t.Parallel()

	args, _, err := buildArgs("echo", nil)
	require.NoError(t, err)
	assert.Nil(t, args.Payload)
}

func TestBuildArgs_UnmarshalablePayload(t *testing.T) {
	t.Parallel()

	_, _, err := buildArgs("echo", make(chan int))
	assert.Error(t, err)
}

func TestNewManager_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
}
