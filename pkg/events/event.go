package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks an event through its lifecycle. Producers usually publish
// pending events; consumers may republish with a terminal status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Event is the envelope carried on every channel. Payload stays raw JSON so
// consumers decode into their own types.
type Event struct {
	Type      string          `json:"event_type"`
	ID        string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Status    Status          `json:"status"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// New builds a pending event of the given type with a serialized payload.
func New(eventType string, payload any) (Event, error) {
	e := Event{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, errors.Join(ErrMarshal, err)
		}
		e.Payload = raw
	}
	e.fillDefaults()
	return e, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}

func (e *Event) fillDefaults() {
	if e.ID == "" {
		e.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.Source == "" {
		e.Source = "app"
	}
}
