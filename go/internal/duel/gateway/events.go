package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
)

// DuelEvent represents the base structure for all duel events pushed to
// websocket clients.
type DuelEvent struct {
	ID        string          `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Session UUID (player UUID for queue events)
	Type      EventType       `json:"type"`       // Event type
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of duel event
type EventType string

const (
	EventTypeQueueMatched     EventType = "QueueMatched"
	EventTypeQueueTimedOut    EventType = "QueueTimedOut"
	EventTypeSessionStarted   EventType = "SessionStarted"
	EventTypeQuestionSelected EventType = "QuestionSelected"
	EventTypeBuzzerOpened     EventType = "BuzzerOpened"
	EventTypeBuzzerWon        EventType = "BuzzerWon"
	EventTypeAnswerScored     EventType = "AnswerScored"
	EventTypeSessionCompleted EventType = "SessionCompleted"
	EventTypeRatingsApplied   EventType = "RatingsApplied"
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *DuelEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeQueueMatched:
		var payload events.QueueMatchedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeQueueTimedOut:
		var payload events.QueueTimedOutPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSessionStarted:
		var payload events.SessionStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeQuestionSelected:
		var payload events.QuestionSelectedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBuzzerOpened:
		var payload events.BuzzerOpenedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBuzzerWon:
		var payload events.BuzzerWonPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAnswerScored:
		var payload events.AnswerScoredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSessionCompleted:
		var payload events.SessionCompletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRatingsApplied:
		var payload events.RatingsAppliedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
