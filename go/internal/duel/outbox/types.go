package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one undelivered (or delivered) domain event row. EntityID
// is the aggregate the event belongs to: a session id for session events,
// a queue entry's player id for matchmaking events.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	EntityID  uuid.UUID       `json:"entity_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// EventPublisher delivers a drained outbox event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
