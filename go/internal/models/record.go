package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchRecord is the immutable history row appended when a session
// finishes. RatingsApplied flips to true exactly once, when the rating
// update lands; until then the record keeps the completed game safe while
// the update is retried.
type MatchRecord struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	Player1ID       uuid.UUID  `json:"player1_id"`
	Player2ID       uuid.UUID  `json:"player2_id"`
	Player1Score    int        `json:"player1_score"`
	Player2Score    int        `json:"player2_score"`
	WinnerID        *uuid.UUID `json:"winner_id,omitempty"` // nil on draw
	Player1PreElo   int        `json:"player1_pre_elo"`
	Player2PreElo   int        `json:"player2_pre_elo"`
	Player1PostElo  int        `json:"player1_post_elo"`
	Player2PostElo  int        `json:"player2_post_elo"`
	RatingsApplied  bool       `json:"ratings_applied"`
	CompletedAt     time.Time  `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
}
