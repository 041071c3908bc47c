package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a duel participant with their current skill rating.
// Rating and the game counters are mutated only when a finished match is
// applied, never during play.
type Player struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	CreatedAt   time.Time `json:"created_at"`
}
