package rating

import "math"

// Score is the actual outcome of a game from one player's perspective.
type Score float64

const (
	ScoreWin  Score = 1.0
	ScoreDraw Score = 0.5
	ScoreLoss Score = 0.0
)

// K-factor tiers: new players move fast, veterans settle down.
const (
	kNew         = 40
	kEstablished = 24
	kVeteran     = 16

	newPlayerGames   = 10
	establishedGames = 30
)

// ExpectedScore returns the probability-like expected outcome for a player
// rated a against an opponent rated b.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// KFactor returns the update coefficient for a player with the given
// number of completed games.
func KFactor(gamesPlayed int) int {
	switch {
	case gamesPlayed < newPlayerGames:
		return kNew
	case gamesPlayed < establishedGames:
		return kEstablished
	default:
		return kVeteran
	}
}

// NewRating computes the post-game rating from the pre-game rating, the
// opponent's pre-game rating, the player's games-played count, and the
// actual outcome. Ratings never drop below zero.
func NewRating(old, opponent, gamesPlayed int, actual Score) int {
	expected := ExpectedScore(old, opponent)
	k := float64(KFactor(gamesPlayed))
	updated := int(math.Round(float64(old) + k*(float64(actual)-expected)))
	if updated < 0 {
		return 0
	}
	return updated
}

// Update holds both players' post-game ratings, computed symmetrically
// from their pre-game state.
type Update struct {
	Player1New int
	Player2New int
}

// Apply computes the symmetric rating update for a finished game.
// player1Score is the actual outcome from player 1's perspective; player 2
// receives the complement.
func Apply(p1Rating, p2Rating, p1Games, p2Games int, player1Score Score) Update {
	return Update{
		Player1New: NewRating(p1Rating, p2Rating, p1Games, player1Score),
		Player2New: NewRating(p2Rating, p1Rating, p2Games, Score(1.0-float64(player1Score))),
	}
}
