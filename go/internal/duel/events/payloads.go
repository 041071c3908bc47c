package events

import (
	"time"
)

// Event payload types shared between the duel services, the orchestrator,
// and the gateway.

// Event type names as they appear on the wire.
const (
	TypeQueueMatched     = "QueueMatched"
	TypeQueueTimedOut    = "QueueTimedOut"
	TypeSessionStarted   = "SessionStarted"
	TypeQuestionSelected = "QuestionSelected"
	TypeBuzzerOpened     = "BuzzerOpened"
	TypeBuzzerWon        = "BuzzerWon"
	TypeAnswerScored     = "AnswerScored"
	TypeSessionCompleted = "SessionCompleted"
	TypeRatingsApplied   = "RatingsApplied"
)

// QueueMatchedPayload is the payload for a QueueMatched event. The entity
// id on the envelope is the new session id.
type QueueMatchedPayload struct {
	SessionID string    `json:"session_id"`
	Player1ID string    `json:"player1_id"`
	Player2ID string    `json:"player2_id"`
	MatchedAt time.Time `json:"matched_at"`
}

// QueueTimedOutPayload is the payload for a QueueTimedOut event. Hitting
// the matchmaking timeout is a normal outcome, not a failure.
type QueueTimedOutPayload struct {
	PlayerID  string    `json:"player_id"`
	WaitedSec int       `json:"waited_sec"`
	ExpiredAt time.Time `json:"expired_at"`
}

// SessionStartedPayload is the payload for a SessionStarted event, emitted
// once the board is built and the session enters play.
type SessionStartedPayload struct {
	SessionID string    `json:"session_id"`
	Player1ID string    `json:"player1_id"`
	Player2ID string    `json:"player2_id"`
	FirstTurn string    `json:"first_turn"`
	StartedAt time.Time `json:"started_at"`
}

// QuestionSelectedPayload is the payload for a QuestionSelected event.
type QuestionSelectedPayload struct {
	SessionID  string    `json:"session_id"`
	QuestionID string    `json:"question_id"`
	Position   int       `json:"position"`
	Category   string    `json:"category"`
	PointValue int       `json:"point_value"`
	PickedBy   string    `json:"picked_by"`
	SelectedAt time.Time `json:"selected_at"`
}

// BuzzerOpenedPayload is the payload for a BuzzerOpened event, emitted
// after the randomized reveal delay elapses.
type BuzzerOpenedPayload struct {
	SessionID  string    `json:"session_id"`
	QuestionID string    `json:"question_id"`
	OpenedAt   time.Time `json:"opened_at"`
}

// BuzzerWonPayload is the payload for a BuzzerWon event. AnswerDeadline
// bounds the winner's answer window.
type BuzzerWonPayload struct {
	SessionID      string    `json:"session_id"`
	QuestionID     string    `json:"question_id"`
	PlayerID       string    `json:"player_id"`
	ServerTS       time.Time `json:"server_ts"`
	AnswerDeadline time.Time `json:"answer_deadline"`
}

// AnswerScoredPayload is the payload for an AnswerScored event. PlayerID
// is empty when the answer window elapsed unused; Delta is zero in that
// case.
type AnswerScoredPayload struct {
	SessionID    string    `json:"session_id"`
	QuestionID   string    `json:"question_id"`
	PlayerID     string    `json:"player_id,omitempty"`
	Correct      bool      `json:"correct"`
	Delta        int       `json:"delta"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	NextTurn     string    `json:"next_turn"`
	ScoredAt     time.Time `json:"scored_at"`
}

// SessionCompletedPayload is the payload for a SessionCompleted event.
// WinnerID is empty on a draw.
type SessionCompletedPayload struct {
	SessionID    string    `json:"session_id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	WinnerID     string    `json:"winner_id,omitempty"`
	Abandoned    bool      `json:"abandoned"`
	CompletedAt  time.Time `json:"completed_at"`
}

// RatingsAppliedPayload is the payload for a RatingsApplied event.
type RatingsAppliedPayload struct {
	SessionID     string    `json:"session_id"`
	Player1ID     string    `json:"player1_id"`
	Player2ID     string    `json:"player2_id"`
	Player1PreElo int       `json:"player1_pre_elo"`
	Player2PreElo int       `json:"player2_pre_elo"`
	Player1Elo    int       `json:"player1_elo"`
	Player2Elo    int       `json:"player2_elo"`
	AppliedAt     time.Time `json:"applied_at"`
}
