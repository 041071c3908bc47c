package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
	"github.com/mcdev12/quizclash/go/internal/duel/outbox"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/rating"
	"github.com/mcdev12/quizclash/go/internal/sqlutil"
)

// ErrRatingUpdateFailed marks a rating update that could not be persisted.
// The completed game itself is already safe in the match record; callers
// retry the update asynchronously instead of failing the game result.
var ErrRatingUpdateFailed = errors.New("rating update failed")

// CompletedMatch is what the app needs to settle a finished session.
type CompletedMatch struct {
	SessionID    uuid.UUID
	Player1ID    uuid.UUID
	Player2ID    uuid.UUID
	Player1Score int
	Player2Score int
	WinnerID     *uuid.UUID // nil on draw
	CompletedAt  time.Time
}

// App settles completed matches: ELO recomputation, player mutation, and
// the immutable history append, all under one transaction.
type App struct {
	db         *sql.DB
	repo       *Repository
	outboxRepo *outbox.Repository
}

func NewApp(db *sql.DB, repo *Repository, outboxRepo *outbox.Repository) *App {
	return &App{
		db:         db,
		repo:       repo,
		outboxRepo: outboxRepo,
	}
}

// GetPlayer retrieves a player by ID.
func (a *App) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	return a.repo.GetPlayer(ctx, id)
}

// EnsurePlayer mirrors an identity-provider player into our table.
func (a *App) EnsurePlayer(ctx context.Context, id uuid.UUID, displayName string, elo int) error {
	return a.repo.EnsurePlayer(ctx, id, displayName, elo)
}

// SettleMatch applies the rating update for a completed session and
// appends the match record. Idempotent: a redelivered completion event
// finds the applied flag already set and does nothing.
func (a *App) SettleMatch(ctx context.Context, m CompletedMatch) error {
	p1, err := a.repo.GetPlayer(ctx, m.Player1ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRatingUpdateFailed, err)
	}
	p2, err := a.repo.GetPlayer(ctx, m.Player2ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRatingUpdateFailed, err)
	}

	score := outcomeScore(m, p1.ID)
	update := rating.Apply(p1.Rating, p2.Rating, p1.GamesPlayed, p2.GamesPlayed, score)

	rec := &models.MatchRecord{
		ID:             uuid.New(),
		SessionID:      m.SessionID,
		Player1ID:      m.Player1ID,
		Player2ID:      m.Player2ID,
		Player1Score:   m.Player1Score,
		Player2Score:   m.Player2Score,
		WinnerID:       m.WinnerID,
		Player1PreElo:  p1.Rating,
		Player2PreElo:  p2.Rating,
		Player1PostElo: update.Player1New,
		Player2PostElo: update.Player2New,
		CompletedAt:    m.CompletedAt,
	}

	err = sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		txRepo := a.repo.WithTx(tx)

		if err := txRepo.InsertMatchRecord(ctx, rec); err != nil {
			return err
		}

		// The conditional flip is the idempotency gate: exactly one
		// delivery of SessionCompleted gets past it.
		applied, err := txRepo.MarkRatingsApplied(ctx, m.SessionID)
		if err != nil {
			return err
		}
		if !applied {
			log.Info().
				Str("session_id", m.SessionID.String()).
				Msg("ratings already applied, skipping")
			return nil
		}

		if err := txRepo.ApplyRating(ctx, m.Player1ID, update.Player1New, winnerIs(m.WinnerID, m.Player1ID)); err != nil {
			return err
		}
		if err := txRepo.ApplyRating(ctx, m.Player2ID, update.Player2New, winnerIs(m.WinnerID, m.Player2ID)); err != nil {
			return err
		}

		return a.outboxRepo.WithTx(tx).Insert(ctx, m.SessionID, events.TypeRatingsApplied, events.RatingsAppliedPayload{
			SessionID:     m.SessionID.String(),
			Player1ID:     m.Player1ID.String(),
			Player2ID:     m.Player2ID.String(),
			Player1PreElo: p1.Rating,
			Player2PreElo: p2.Rating,
			Player1Elo:    update.Player1New,
			Player2Elo:    update.Player2New,
			AppliedAt:     time.Now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRatingUpdateFailed, err)
	}

	log.Info().
		Str("session_id", m.SessionID.String()).
		Int("player1_elo", update.Player1New).
		Int("player2_elo", update.Player2New).
		Msg("match settled")
	return nil
}

// GetMatchRecord retrieves the history row for a session.
func (a *App) GetMatchRecord(ctx context.Context, sessionID uuid.UUID) (*models.MatchRecord, error) {
	return a.repo.GetMatchRecord(ctx, sessionID)
}

func outcomeScore(m CompletedMatch, player1 uuid.UUID) rating.Score {
	if m.WinnerID == nil {
		return rating.ScoreDraw
	}
	if *m.WinnerID == player1 {
		return rating.ScoreWin
	}
	return rating.ScoreLoss
}

func winnerIs(winner *uuid.UUID, player uuid.UUID) bool {
	return winner != nil && *winner == player
}
