package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
)

// fakeBank serves a configurable set of categories. Categories listed in
// incomplete get no question at the top tier.
type fakeBank struct {
	categories []string
	incomplete map[string]bool
}

func (b *fakeBank) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CategoriesResponse{
			Results:  len(b.categories),
			Response: b.categories,
		})
	})
	mux.HandleFunc(QuestionsEndpoint, func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		var questions []Question
		for _, tier := range session.PointTiers {
			if b.incomplete[category] && tier == 1000 {
				continue
			}
			// Two candidates per tier so selection has something to pick from.
			for i := 0; i < 2; i++ {
				questions = append(questions, Question{
					ID:            uuid.New(),
					Category:      category,
					Text:          fmt.Sprintf("%s question worth %d, take %d", category, tier, i),
					CorrectAnswer: "Paris",
					Variants:      []string{"paris, france"},
					PointValue:    tier,
				})
			}
		}
		json.NewEncoder(w).Encode(QuestionsResponse{Results: len(questions), Response: questions})
	})
	return mux
}

func TestBuildBoardDealsFullValidBoard(t *testing.T) {
	bank := &fakeBank{categories: []string{"history", "geography", "science", "film", "music"}}
	srv := httptest.NewServer(bank.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "")
	sessionID := uuid.New()
	board, err := client.BuildBoard(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("BuildBoard() error = %v", err)
	}
	if len(board) != models.BoardSize {
		t.Fatalf("board has %d cells, want %d", len(board), models.BoardSize)
	}
	if err := session.ValidateBoard(board); err != nil {
		t.Fatalf("ValidateBoard() = %v", err)
	}
	for _, cell := range board {
		if cell.SessionID != sessionID {
			t.Fatalf("cell %d carries session %s, want %s", cell.Position, cell.SessionID, sessionID)
		}
		if cell.State != models.QuestionStateIdle {
			t.Fatalf("cell %d dealt in state %s, want idle", cell.Position, cell.State)
		}
	}
}

func TestBuildBoardSkipsCategoriesWithMissingTiers(t *testing.T) {
	bank := &fakeBank{
		categories: []string{"history", "geography", "science", "film", "music", "sports"},
		incomplete: map[string]bool{"sports": true},
	}
	srv := httptest.NewServer(bank.handler())
	defer srv.Close()

	board, err := NewClient(srv.URL, "").BuildBoard(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("BuildBoard() error = %v", err)
	}
	for _, cell := range board {
		if cell.Category == "sports" {
			t.Fatal("board includes a category without full tier coverage")
		}
	}
}

func TestBuildBoardFailsWhenBankIsTooThin(t *testing.T) {
	bank := &fakeBank{
		categories: []string{"history", "geography", "science", "film", "music"},
		incomplete: map[string]bool{"music": true},
	}
	srv := httptest.NewServer(bank.handler())
	defer srv.Close()

	_, err := NewClient(srv.URL, "").BuildBoard(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("BuildBoard() succeeded with only four complete categories")
	}
	if !strings.Contains(err.Error(), "tier coverage") {
		t.Fatalf("error = %v, want tier coverage failure", err)
	}
}
