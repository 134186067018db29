package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/period"
)

// Action is what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
)

var ErrInvalidMessage = errors.New("invalid record changed message")

// RecordChangedMessage tells other instances that the records of a period
// changed and their cached summaries are stale. It carries no record data.
type RecordChangedMessage struct {
	EventID   string     `json:"event_id"`
	Origin    string     `json:"origin"` // instance id of the publisher
	Kind      core.Kind  `json:"kind"`
	Action    Action     `json:"action"`
	RecordID  string     `json:"record_id,omitempty"`
	Period    period.Key `json:"period"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewRecordChangedMessage creates a message with a fresh event id.
func NewRecordChangedMessage(origin string, kind core.Kind, action Action, recordID string, key period.Key) *RecordChangedMessage {
	return &RecordChangedMessage{
		EventID:   uuid.NewString(),
		Origin:    origin,
		Kind:      kind,
		Action:    action,
		RecordID:  recordID,
		Period:    key,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the fields consumers rely on.
func (m *RecordChangedMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidMessage)
	}
	if err := m.Kind.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Period.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch m.Action {
	case ActionCreated, ActionEdited, ActionDeleted:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, m.Action)
	}
	return nil
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and validates a message.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
