package players

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/rating"
)

func TestOutcomeScore(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()

	if got := outcomeScore(CompletedMatch{WinnerID: &p1}, p1); got != rating.ScoreWin {
		t.Errorf("winner's score = %v, want win", got)
	}
	if got := outcomeScore(CompletedMatch{WinnerID: &p2}, p1); got != rating.ScoreLoss {
		t.Errorf("loser's score = %v, want loss", got)
	}
	if got := outcomeScore(CompletedMatch{}, p1); got != rating.ScoreDraw {
		t.Errorf("draw score = %v, want draw", got)
	}
}

func TestWinnerIs(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()

	if !winnerIs(&p1, p1) {
		t.Error("winnerIs(p1, p1) = false")
	}
	if winnerIs(&p1, p2) {
		t.Error("winnerIs(p1, p2) = true")
	}
	if winnerIs(nil, p1) {
		t.Error("winnerIs(nil, p1) = true, draws have no winner")
	}
}
