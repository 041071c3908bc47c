package session

import (
	"fmt"

	"github.com/mcdev12/quizclash/go/internal/models"
)

// BoardRows and BoardCols shape the 5x5 board: each row is one category,
// each column one point tier.
const (
	BoardRows = 5
	BoardCols = 5
)

// PointTiers are the column values, left to right.
var PointTiers = [BoardCols]int{200, 400, 600, 800, 1000}

// ValidateBoard checks a candidate board before it is persisted: exactly
// 25 distinct positions, one category per row, and the fixed point tier
// per column.
func ValidateBoard(questions []models.GameQuestion) error {
	if len(questions) != models.BoardSize {
		return fmt.Errorf("board requires %d questions, got %d", models.BoardSize, len(questions))
	}

	seen := make(map[int]bool, models.BoardSize)
	rowCategory := make(map[int]string, BoardRows)
	for _, q := range questions {
		if q.Position < 0 || q.Position >= models.BoardSize {
			return fmt.Errorf("position %d out of range", q.Position)
		}
		if seen[q.Position] {
			return fmt.Errorf("duplicate position %d", q.Position)
		}
		seen[q.Position] = true

		row := q.Position / BoardCols
		if cat, ok := rowCategory[row]; ok {
			if cat != q.Category {
				return fmt.Errorf("row %d mixes categories %q and %q", row, cat, q.Category)
			}
		} else {
			rowCategory[row] = q.Category
		}

		if want := PointTiers[q.Position%BoardCols]; q.PointValue != want {
			return fmt.Errorf("position %d has point value %d, want %d", q.Position, q.PointValue, want)
		}

		if q.Text == "" || q.Answer == "" {
			return fmt.Errorf("position %d has empty question or answer", q.Position)
		}
	}
	return nil
}
