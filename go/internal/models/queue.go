package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus defines the status of a matchmaking queue entry.
type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusMatched   QueueStatus = "matched"
	QueueStatusCancelled QueueStatus = "cancelled"
	// QueueStatusExpired marks an entry that hit the matchmaking timeout
	// without finding an opponent. The player drops back to idle; this is
	// not an error state.
	QueueStatusExpired QueueStatus = "expired"
)

// QueueEntry represents a pending matchmaking request. At most one waiting
// entry exists per player; re-enqueueing cancels the previous one.
type QueueEntry struct {
	ID         uuid.UUID   `json:"id"`
	PlayerID   uuid.UUID   `json:"player_id"`
	Rating     int         `json:"rating"` // snapshot at enqueue time
	Status     QueueStatus `json:"status"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	MatchedAt  *time.Time  `json:"matched_at,omitempty"`
	SessionID  *uuid.UUID  `json:"session_id,omitempty"` // set once matched
}

// QueueStats summarizes the current waiting pool.
type QueueStats struct {
	Waiting    int     `json:"waiting"`
	AvgRating  float64 `json:"avg_rating"`
	AvgWaitSec float64 `json:"avg_wait_sec"`
}
