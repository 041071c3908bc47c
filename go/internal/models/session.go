package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a game session.
type SessionStatus string

const (
	SessionStatusWaiting    SessionStatus = "waiting"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

// QuestionState defines where a single board position is in its question
// cycle. Every position walks idle -> revealed -> buzzer_open -> answering
// -> scored; scored is terminal.
type QuestionState string

const (
	QuestionStateIdle       QuestionState = "idle"
	QuestionStateRevealed   QuestionState = "revealed"
	QuestionStateBuzzerOpen QuestionState = "buzzer_open"
	QuestionStateAnswering  QuestionState = "answering"
	QuestionStateScored     QuestionState = "scored"
)

// BoardSize is the number of positions on the duel board (5 categories x 5
// point tiers).
const BoardSize = 25

// GameSession represents one duel from pairing through completion or
// abandonment. Player2ID is nil only while the session waits for its board.
type GameSession struct {
	ID                uuid.UUID     `json:"id"`
	Player1ID         uuid.UUID     `json:"player1_id"`
	Player2ID         *uuid.UUID    `json:"player2_id,omitempty"`
	Status            SessionStatus `json:"status"`
	Player1Score      int           `json:"player1_score"`
	Player2Score      int           `json:"player2_score"`
	CurrentTurn       uuid.UUID     `json:"current_turn"` // who may pick next
	CurrentQuestionID *uuid.UUID    `json:"current_question_id,omitempty"`
	WinnerID          *uuid.UUID    `json:"winner_id,omitempty"` // nil on draw
	CreatedAt         time.Time     `json:"created_at"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// GameQuestion is one board position of a session. Exactly 25 exist per
// session, fixed at board creation. The question payload is denormalized
// from the question bank so answer validation needs no external call.
type GameQuestion struct {
	SessionID  uuid.UUID     `json:"session_id"`
	QuestionID uuid.UUID     `json:"question_id"`
	Position   int           `json:"position"` // 0-24, row = category, col = tier
	Category   string        `json:"category"`
	Text       string        `json:"text"`
	Answer     string        `json:"answer"`
	Variants   []string      `json:"variants,omitempty"`
	PointValue int           `json:"point_value"`
	State      QuestionState `json:"state"`
	// AnsweringPlayer is the buzzer race winner while the position is in
	// the answering state; AnswerDeadline bounds their window.
	AnsweringPlayer *uuid.UUID `json:"answering_player,omitempty"`
	AnswerDeadline  *time.Time `json:"answer_deadline,omitempty"`
	// AnsweredBy is nil when the position was scored on answer-window
	// timeout rather than a submission.
	AnsweredBy *uuid.UUID `json:"answered_by,omitempty"`
	Correct    *bool      `json:"correct,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// BuzzerEvent records one buzz attempt. The log is append-only per question
// and freezes once a winner is flagged. ServerTS is authoritative for race
// ordering; ClientTS is informational only.
type BuzzerEvent struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	ClientTS   time.Time `json:"client_ts"`
	ServerTS   time.Time `json:"server_ts"`
	WasFirst   bool      `json:"was_first"`
}
