package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/models"
)

// Session errors. These are the internal taxonomy; the gateway maps them
// to the fixed set of user-visible messages.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session not in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrAlreadyUsed     = errors.New("question already used")
	ErrAlreadyBuzzed   = errors.New("already buzzed")
	ErrBuzzerClosed    = errors.New("buzzer closed")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrNotParticipant  = errors.New("player not in session")
)

// Config holds the question-cycle timing knobs.
type Config struct {
	// The buzzer opens after a uniformly random delay in
	// [BuzzerDelayMin, BuzzerDelayMax] following the reveal.
	BuzzerDelayMin time.Duration
	BuzzerDelayMax time.Duration
	// BuzzWindow bounds how long an open buzzer waits for a first buzz
	// before the position scores as unanswered.
	BuzzWindow time.Duration
	// AnswerWindow bounds the race winner's time to answer.
	AnswerWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		BuzzerDelayMin: 1000 * time.Millisecond,
		BuzzerDelayMax: 3000 * time.Millisecond,
		BuzzWindow:     10 * time.Second,
		AnswerWindow:   5000 * time.Millisecond,
	}
}

// ScoreRequest is what the repository needs to score one board position.
type ScoreRequest struct {
	SessionID  uuid.UUID
	QuestionID uuid.UUID
	// AnsweredBy is nil when the answer window elapsed unused.
	AnsweredBy *uuid.UUID
	Correct    bool
	Delta      int
	ScoredAt   time.Time
}

// ScoreResult reports the session after scoring, and whether that score
// finished the board.
type ScoreResult struct {
	Session   *models.GameSession
	Completed bool
}

// BuzzResult reports a buzz attempt against the race outcome. Won is
// false when the buzz was recorded but a rival's earlier server timestamp
// took the question.
type BuzzResult struct {
	Won            bool       `json:"won"`
	WinnerID       uuid.UUID  `json:"winner_id"`
	ServerTS       time.Time  `json:"server_ts"`
	AnswerDeadline *time.Time `json:"answer_deadline,omitempty"`
}

// AnswerVerdict is returned from SubmitAnswer so callers can surface the
// match confidence alongside the score change.
type AnswerVerdict struct {
	Correct    bool    `json:"correct"`
	Confidence float64 `json:"confidence"`
	Delta      int     `json:"delta"`
}

// BoardCell is one position in a session snapshot.
type BoardCell struct {
	QuestionID uuid.UUID            `json:"question_id"`
	Position   int                  `json:"position"`
	Category   string               `json:"category"`
	PointValue int                  `json:"point_value"`
	State      models.QuestionState `json:"state"`
	AnsweredBy *uuid.UUID           `json:"answered_by,omitempty"`
	Correct    *bool                `json:"correct,omitempty"`
}

// CurrentQuestion is the in-flight question view. The answer itself is
// never included.
type CurrentQuestion struct {
	QuestionID       uuid.UUID            `json:"question_id"`
	Position         int                  `json:"position"`
	Category         string               `json:"category"`
	Text             string               `json:"text"`
	PointValue       int                  `json:"point_value"`
	State            models.QuestionState `json:"state"`
	AnsweringPlayer  *uuid.UUID           `json:"answering_player,omitempty"`
	TimeRemainingSec int                  `json:"time_remaining_sec"`
}

// Snapshot is the full session view handed to the presentation layer.
type Snapshot struct {
	SessionID       uuid.UUID            `json:"session_id"`
	Status          models.SessionStatus `json:"status"`
	Player1ID       uuid.UUID            `json:"player1_id"`
	Player2ID       *uuid.UUID           `json:"player2_id,omitempty"`
	Player1Score    int                  `json:"player1_score"`
	Player2Score    int                  `json:"player2_score"`
	CurrentTurn     uuid.UUID            `json:"current_turn"`
	WinnerID        *uuid.UUID           `json:"winner_id,omitempty"`
	Board           []BoardCell          `json:"board"`
	CurrentQuestion *CurrentQuestion     `json:"current_question,omitempty"`
}
