package rating

import (
	"math"
	"testing"
)

func TestExpectedScore(t *testing.T) {
	if got := ExpectedScore(1200, 1200); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("equal ratings expected score = %v, want 0.5", got)
	}

	// A 400-point gap gives the stronger player ~10:1 odds.
	got := ExpectedScore(1600, 1200)
	if math.Abs(got-10.0/11.0) > 1e-9 {
		t.Errorf("ExpectedScore(1600, 1200) = %v, want %v", got, 10.0/11.0)
	}

	// Symmetry: expectations sum to 1.
	a, b := ExpectedScore(1450, 1275), ExpectedScore(1275, 1450)
	if math.Abs(a+b-1.0) > 1e-9 {
		t.Errorf("expectations sum = %v, want 1.0", a+b)
	}
}

func TestKFactorTiers(t *testing.T) {
	tests := []struct {
		games int
		want  int
	}{
		{0, kNew},
		{9, kNew},
		{10, kEstablished},
		{29, kEstablished},
		{30, kVeteran},
		{500, kVeteran},
	}

	for _, tt := range tests {
		if got := KFactor(tt.games); got != tt.want {
			t.Errorf("KFactor(%d) = %d, want %d", tt.games, got, tt.want)
		}
	}
}

func TestApplySymmetry(t *testing.T) {
	// Equal ratings and games played: winner's gain mirrors loser's loss.
	const pre = 1200
	u := Apply(pre, pre, 20, 20, ScoreWin)

	gain := u.Player1New - pre
	loss := u.Player2New - pre
	if gain != -loss {
		t.Errorf("rating changes not symmetric: winner %+d, loser %+d", gain, loss)
	}
	if gain <= 0 {
		t.Errorf("winner gained %+d, want positive", gain)
	}
}

func TestApplyDraw(t *testing.T) {
	u := Apply(1300, 1300, 15, 15, ScoreDraw)
	if u.Player1New != 1300 || u.Player2New != 1300 {
		t.Errorf("draw between equals moved ratings: %d, %d", u.Player1New, u.Player2New)
	}

	// A draw against a stronger opponent is a gain for the weaker player.
	u = Apply(1100, 1400, 15, 15, ScoreDraw)
	if u.Player1New <= 1100 {
		t.Errorf("weaker player drew but rating %d did not rise from 1100", u.Player1New)
	}
	if u.Player2New >= 1400 {
		t.Errorf("stronger player drew but rating %d did not fall from 1400", u.Player2New)
	}
}

func TestNewRatingFloor(t *testing.T) {
	if got := NewRating(5, 200, 0, ScoreLoss); got != 0 {
		t.Errorf("NewRating floor = %d, want 0", got)
	}
}

func TestNewPlayerMovesFaster(t *testing.T) {
	newbie := NewRating(1200, 1200, 0, ScoreWin) - 1200
	veteran := NewRating(1200, 1200, 100, ScoreWin) - 1200
	if newbie <= veteran {
		t.Errorf("new player gain %d not greater than veteran gain %d", newbie, veteran)
	}
}
