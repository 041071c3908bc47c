package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
)

func TestConvertAndParseRoundTrip(t *testing.T) {
	ec := &EventConsumer{}
	sessionID := uuid.New().String()
	payload, err := json.Marshal(events.AnswerScoredPayload{
		SessionID:  sessionID,
		QuestionID: uuid.New().String(),
		PlayerID:   uuid.New().String(),
		Correct:    true,
		Delta:      600,
		NextTurn:   uuid.New().String(),
		ScoredAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	wsEvent, err := ec.convertToWebSocketEvent(uuid.New().String(), "AnswerScored", sessionID, time.Now().UTC(), payload)
	if err != nil {
		t.Fatalf("convertToWebSocketEvent() error = %v", err)
	}
	if wsEvent.Type != EventTypeAnswerScored {
		t.Fatalf("type = %s, want %s", wsEvent.Type, EventTypeAnswerScored)
	}
	if wsEvent.SessionID != sessionID {
		t.Fatalf("session id = %s, want %s", wsEvent.SessionID, sessionID)
	}

	parsed, err := ParseEventPayload(wsEvent)
	if err != nil {
		t.Fatalf("ParseEventPayload() error = %v", err)
	}
	scored, ok := parsed.(events.AnswerScoredPayload)
	if !ok {
		t.Fatalf("parsed payload is %T, want AnswerScoredPayload", parsed)
	}
	if !scored.Correct || scored.Delta != 600 {
		t.Fatalf("payload = %+v, want correct answer worth 600", scored)
	}
}

func TestConvertSkipsUnknownEventTypes(t *testing.T) {
	ec := &EventConsumer{}
	wsEvent, err := ec.convertToWebSocketEvent(uuid.New().String(), "SomethingElse", uuid.New().String(), time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("convertToWebSocketEvent() error = %v", err)
	}
	if wsEvent != nil {
		t.Fatalf("unknown event type produced %+v, want nil", wsEvent)
	}
}

func TestParseEventPayloadRejectsMalformedData(t *testing.T) {
	// The consumer runs every event through the typed decode before
	// broadcasting, so garbage payloads never reach clients.
	_, err := ParseEventPayload(&DuelEvent{
		Type: EventTypeAnswerScored,
		Data: json.RawMessage(`{"correct": "not-a-bool"}`),
	})
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestParseEventPayloadUnknownType(t *testing.T) {
	parsed, err := ParseEventPayload(&DuelEvent{Type: EventType("Mystery")})
	if err != nil {
		t.Fatalf("ParseEventPayload() error = %v", err)
	}
	if parsed != nil {
		t.Fatalf("parsed = %v, want nil for unknown type", parsed)
	}
}
