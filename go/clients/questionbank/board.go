package questionbank

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
)

// BuildBoard deals a full duel board for a session: five random categories,
// one question per point tier each. Categories without full tier coverage
// are skipped, so a thin bank degrades to an error rather than a board with
// holes.
func (c *Client) BuildBoard(ctx context.Context, sessionID uuid.UUID) ([]models.GameQuestion, error) {
	categories, err := c.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) < session.BoardRows {
		return nil, fmt.Errorf("question bank has %d categories, need at least %d", len(categories), session.BoardRows)
	}
	c.shuffle(len(categories), func(i, j int) {
		categories[i], categories[j] = categories[j], categories[i]
	})

	board := make([]models.GameQuestion, 0, models.BoardSize)
	rows := 0
	for _, category := range categories {
		if rows == session.BoardRows {
			break
		}
		questions, err := c.GetQuestionsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to load category %q: %w", category, err)
		}
		row, ok := c.dealRow(sessionID, rows, category, questions)
		if !ok {
			log.Warn().Str("category", category).Msg("category missing a point tier, skipping")
			continue
		}
		board = append(board, row...)
		rows++
	}
	if rows < session.BoardRows {
		return nil, fmt.Errorf("only %d of %d categories have full tier coverage", rows, session.BoardRows)
	}

	if err := session.ValidateBoard(board); err != nil {
		return nil, fmt.Errorf("question bank dealt an invalid board: %w", err)
	}
	return board, nil
}

// dealRow picks one question per point tier for a single category row.
// Returns false when any tier has no candidates.
func (c *Client) dealRow(sessionID uuid.UUID, row int, category string, questions []Question) ([]models.GameQuestion, bool) {
	byTier := make(map[int][]Question, len(session.PointTiers))
	for _, q := range questions {
		byTier[q.PointValue] = append(byTier[q.PointValue], q)
	}

	cells := make([]models.GameQuestion, 0, session.BoardCols)
	for col, tier := range session.PointTiers {
		candidates := byTier[tier]
		if len(candidates) == 0 {
			return nil, false
		}
		q := candidates[c.intn(len(candidates))]
		cells = append(cells, models.GameQuestion{
			SessionID:  sessionID,
			QuestionID: q.ID,
			Position:   row*session.BoardCols + col,
			Category:   category,
			Text:       q.Text,
			Answer:     q.CorrectAnswer,
			Variants:   q.Variants,
			PointValue: q.PointValue,
			State:      models.QuestionStateIdle,
		})
	}
	return cells, true
}
