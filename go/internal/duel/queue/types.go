package queue

import (
	"errors"
	"time"
)

// Matchmaking errors. ErrOpponentNotFound is the normal outcome of a
// search cycle with nobody in range, and of the overall timeout; it is
// not a failure.
var (
	ErrNoActiveEntry    = errors.New("no active queue entry")
	ErrOpponentNotFound = errors.New("opponent not found")
	ErrPairingConflict  = errors.New("pairing conflict")
)

// Config holds the matchmaking search schedule. The ELO radius starts at
// RadiusStart and widens by RadiusStep every RadiusInterval up to
// RadiusMax; an entry that is still waiting after Timeout expires back to
// idle.
type Config struct {
	RadiusStart    int
	RadiusStep     int
	RadiusInterval time.Duration
	RadiusMax      int
	Timeout        time.Duration
	PollInterval   time.Duration
	PairRetries    int
}

func DefaultConfig() Config {
	return Config{
		RadiusStart:    100,
		RadiusStep:     100,
		RadiusInterval: 10 * time.Second,
		RadiusMax:      500,
		Timeout:        60 * time.Second,
		PollInterval:   2 * time.Second,
		PairRetries:    3,
	}
}

// RadiusAt returns the search radius for an entry that has been waiting
// for the given duration.
func (c Config) RadiusAt(waited time.Duration) int {
	if waited < 0 {
		waited = 0
	}
	steps := int(waited / c.RadiusInterval)
	radius := c.RadiusStart + steps*c.RadiusStep
	if radius > c.RadiusMax {
		return c.RadiusMax
	}
	return radius
}

// SearchState is the matchmaking status surfaced to the presentation
// layer.
type SearchState string

const (
	SearchStateSearching SearchState = "searching"
	SearchStateFound     SearchState = "found"
	SearchStateIdle      SearchState = "idle"
)

// StatusSnapshot describes where one player's matchmaking request stands.
type StatusSnapshot struct {
	State      SearchState `json:"state"`
	ElapsedSec int         `json:"elapsed_sec"`
	Radius     int         `json:"radius,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
}
