package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Refresh reasons.
const (
	ReasonManual    = "manual"
	ReasonScheduled = "scheduled"
	ReasonStartup   = "startup"
)

// RefreshMessage asks a worker to reload the source and re-export the reports.
// The ID doubles as the export run id.
type RefreshMessage struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshMessage creates a refresh request with a fresh id.
func NewRefreshMessage(reason string) *RefreshMessage {
	if reason == "" {
		reason = ReasonManual
	}
	return &RefreshMessage{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON creates a message from JSON bytes
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("refresh message without id")
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, errors.New("refresh message id is not a uuid")
	}
	return &msg, nil
}
