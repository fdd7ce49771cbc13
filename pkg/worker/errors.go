package worker

import "errors"

var (
	ErrPoolRequired      = errors.New("worker: pool is required")
	ErrUnknownTask       = errors.New("worker: unknown task")
	ErrInvalidPayload    = errors.New("worker: invalid payload")
	ErrAlreadyStarted    = errors.New("worker: already started")
	ErrNotStarted        = errors.New("worker: not started")
	ErrInvalidSchedule   = errors.New("worker: invalid cron schedule")
	ErrHealthcheckFailed = errors.New("worker: healthcheck failed")
)
