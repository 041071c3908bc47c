package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
	"github.com/mcdev12/quizclash/go/internal/players"
)

// DomainEvent represents a domain event from JetStream
type DomainEvent struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	EntityID  string          `json:"entityId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// HandleDomainEvent handles incoming domain events and routes them to appropriate handlers
func (o *Orchestrator) HandleDomainEvent(ctx context.Context, eventType string, entityID uuid.UUID, payload []byte) error {
	log.Info().
		Str("event_type", eventType).
		Str("entity_id", entityID.String()).
		Msg("handling domain event")

	switch eventType {
	case events.TypeQueueMatched:
		var p events.QueueMatchedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal QueueMatched payload: %w", err)
		}
		return o.handleQueueMatched(ctx, entityID, p)

	case events.TypeQuestionSelected:
		var p events.QuestionSelectedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal QuestionSelected payload: %w", err)
		}
		return o.handleQuestionSelected(ctx, entityID, p)

	case events.TypeBuzzerOpened:
		var p events.BuzzerOpenedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal BuzzerOpened payload: %w", err)
		}
		return o.handleBuzzerOpened(ctx, entityID, p)

	case events.TypeBuzzerWon:
		var p events.BuzzerWonPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal BuzzerWon payload: %w", err)
		}
		return o.handleBuzzerWon(ctx, entityID, p)

	case events.TypeAnswerScored:
		// The in-flight question settled, whichever window was pending is
		// moot.
		o.cancelTimer(entityID)
		return nil

	case events.TypeSessionCompleted:
		var p events.SessionCompletedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal SessionCompleted payload: %w", err)
		}
		return o.handleSessionCompleted(ctx, entityID, p)

	case events.TypeSessionStarted, events.TypeRatingsApplied, events.TypeQueueTimedOut:
		// Gateway-facing events, nothing to drive here.
		return nil

	default:
		log.Warn().
			Str("event_type", eventType).
			Str("entity_id", entityID.String()).
			Msg("unknown event type - ignoring")
		return nil
	}
}

// handleQueueMatched builds the board and starts the session. StartSession
// is idempotent, so a redelivered match event is harmless.
func (o *Orchestrator) handleQueueMatched(ctx context.Context, sessionID uuid.UUID, p events.QueueMatchedPayload) error {
	log.Info().
		Str("session_id", sessionID.String()).
		Str("player1_id", p.Player1ID).
		Str("player2_id", p.Player2ID).
		Msg("handling QueueMatched event")

	board, err := o.boards.BuildBoard(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("build board: %w", err)
	}
	if _, err := o.sessions.StartSession(ctx, sessionID, board); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// handleQuestionSelected schedules the buzzer open after the randomized
// reveal delay.
func (o *Orchestrator) handleQuestionSelected(ctx context.Context, sessionID uuid.UUID, p events.QuestionSelectedPayload) error {
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return fmt.Errorf("parse question ID: %w", err)
	}

	delay := o.revealDelay()
	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", p.QuestionID).
		Dur("delay", delay).
		Msg("handling QuestionSelected event")

	o.scheduleTask(ctx, timerTask{sessionID: sessionID, questionID: questionID, kind: taskOpenBuzzer}, delay)
	return nil
}

// handleBuzzerOpened schedules the no-buzz timeout so an unanswered open
// buzzer still settles the question.
func (o *Orchestrator) handleBuzzerOpened(ctx context.Context, sessionID uuid.UUID, p events.BuzzerOpenedPayload) error {
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return fmt.Errorf("parse question ID: %w", err)
	}

	o.scheduleTask(ctx, timerTask{sessionID: sessionID, questionID: questionID, kind: taskBuzzTimeout}, o.cfg.BuzzWindow)
	return nil
}

// handleBuzzerWon replaces the no-buzz timer with the winner's answer
// window, anchored on the deadline the session service committed.
func (o *Orchestrator) handleBuzzerWon(ctx context.Context, sessionID uuid.UUID, p events.BuzzerWonPayload) error {
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return fmt.Errorf("parse question ID: %w", err)
	}

	delay := p.AnswerDeadline.Sub(o.clock.Now())
	if delay < 0 {
		delay = 0
	}
	o.scheduleTask(ctx, timerTask{sessionID: sessionID, questionID: questionID, kind: taskAnswerTimeout}, delay)
	return nil
}

// handleSessionCompleted cancels any pending timer and settles ratings.
// SettleMatch is gated on the match record, so replays after a success do
// nothing; failures retry with backoff since losing a completed game's
// rating update is not acceptable.
func (o *Orchestrator) handleSessionCompleted(ctx context.Context, sessionID uuid.UUID, p events.SessionCompletedPayload) error {
	o.cancelTimer(sessionID)

	player1ID, err := uuid.Parse(p.Player1ID)
	if err != nil {
		return fmt.Errorf("parse player1 ID: %w", err)
	}
	player2ID, err := uuid.Parse(p.Player2ID)
	if err != nil {
		return fmt.Errorf("parse player2 ID: %w", err)
	}
	var winnerID *uuid.UUID
	if p.WinnerID != "" {
		w, err := uuid.Parse(p.WinnerID)
		if err != nil {
			return fmt.Errorf("parse winner ID: %w", err)
		}
		winnerID = &w
	}

	match := players.CompletedMatch{
		SessionID:    sessionID,
		Player1ID:    player1ID,
		Player2ID:    player2ID,
		Player1Score: p.Player1Score,
		Player2Score: p.Player2Score,
		WinnerID:     winnerID,
		CompletedAt:  p.CompletedAt,
	}

	var settleErr error
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		settleErr = o.settler.SettleMatch(ctx, match)
		if settleErr == nil {
			return nil
		}
		log.Warn().
			Err(settleErr).
			Str("session_id", sessionID.String()).
			Int("attempt", attempt).
			Msg("rating settlement failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.clock.NewTimer(settleBackoff).Chan():
		}
	}
	// Returning the error leaves the event unacked; JetStream redelivery
	// picks the settlement back up.
	return fmt.Errorf("settle match after %d attempts: %w", settleAttempts, settleErr)
}
