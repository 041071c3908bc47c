package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/models"
)

func TestFirstBuzzOrdersByServerTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	fast, slow := uuid.New(), uuid.New()

	buzzes := []models.BuzzerEvent{
		{ID: uuid.New(), PlayerID: slow, ServerTS: base.Add(80 * time.Millisecond), ClientTS: base},
		{ID: uuid.New(), PlayerID: fast, ServerTS: base.Add(15 * time.Millisecond), ClientTS: base.Add(time.Hour)},
	}

	winner := FirstBuzz(buzzes)
	if winner == nil || winner.PlayerID != fast {
		t.Fatal("earliest server timestamp must win, client timestamps ignored")
	}
}

func TestFirstBuzzTieBreaksOnLogOrder(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()

	buzzes := []models.BuzzerEvent{
		{ID: uuid.New(), PlayerID: first, ServerTS: base},
		{ID: uuid.New(), PlayerID: second, ServerTS: base},
	}

	winner := FirstBuzz(buzzes)
	if winner == nil || winner.PlayerID != first {
		t.Fatal("exact timestamp tie goes to the earlier log entry")
	}
}

func TestFirstBuzzEmpty(t *testing.T) {
	if FirstBuzz(nil) != nil {
		t.Fatal("no buzzes means no winner")
	}
}
