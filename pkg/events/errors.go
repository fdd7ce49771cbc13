package events

import "errors"

var (
	ErrNotConnected = errors.New("events: redis client unavailable")
	ErrNoChannel    = errors.New("events: event has no channel or type")
	ErrMarshal      = errors.New("events: payload not serializable")
)
