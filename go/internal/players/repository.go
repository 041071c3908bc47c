package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/sqlutil"
)

// ErrPlayerNotFound is returned when a player id has no row.
var ErrPlayerNotFound = errors.New("player not found")

// ErrMatchRecordNotFound is returned when a session has no history row yet.
var ErrMatchRecordNotFound = errors.New("match record not found")

// Repository implements player and match-history data access.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

// GetPlayer retrieves a player by ID.
func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, rating, games_played, games_won, created_at
		FROM players WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.DisplayName, &p.Rating, &p.GamesPlayed, &p.GamesWon, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

// EnsurePlayer inserts a player row on first contact. Identity is owned by
// the auth collaborator; this only mirrors the id, name, and starting
// rating it hands us.
func (r *Repository) EnsurePlayer(ctx context.Context, id uuid.UUID, displayName string, rating int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (id, display_name, rating, games_played, games_won, created_at)
		VALUES ($1, $2, $3, 0, 0, now())
		ON CONFLICT (id) DO NOTHING`,
		id, displayName, rating,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure player: %w", err)
	}
	return nil
}

// ApplyRating writes a player's post-game rating and bumps the game
// counters. won is whether this player took the match.
func (r *Repository) ApplyRating(ctx context.Context, id uuid.UUID, newRating int, won bool) error {
	wonInc := 0
	if won {
		wonInc = 1
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET rating = $2, games_played = games_played + 1, games_won = games_won + $3
		WHERE id = $1`,
		id, newRating, wonInc,
	)
	if err != nil {
		return fmt.Errorf("failed to apply rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// InsertMatchRecord appends the immutable history row for a completed
// session. Conflicts on session_id are ignored so redelivered completion
// events cannot duplicate history.
func (r *Repository) InsertMatchRecord(ctx context.Context, rec *models.MatchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO match_records (
			id, session_id, player1_id, player2_id,
			player1_score, player2_score, winner_id,
			player1_pre_elo, player2_pre_elo, player1_post_elo, player2_post_elo,
			ratings_applied, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, now())
		ON CONFLICT (session_id) DO NOTHING`,
		rec.ID, rec.SessionID, rec.Player1ID, rec.Player2ID,
		rec.Player1Score, rec.Player2Score, rec.WinnerID,
		rec.Player1PreElo, rec.Player2PreElo, rec.Player1PostElo, rec.Player2PostElo,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	return nil
}

// MarkRatingsApplied flips the applied flag exactly once. Returns false
// when another worker (or a redelivery) already applied the update.
func (r *Repository) MarkRatingsApplied(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE match_records SET ratings_applied = true
		WHERE session_id = $1 AND NOT ratings_applied`,
		sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark ratings applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// GetMatchRecord retrieves the history row for a session.
func (r *Repository) GetMatchRecord(ctx context.Context, sessionID uuid.UUID) (*models.MatchRecord, error) {
	var rec models.MatchRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, player1_id, player2_id,
			player1_score, player2_score, winner_id,
			player1_pre_elo, player2_pre_elo, player1_post_elo, player2_post_elo,
			ratings_applied, completed_at, created_at
		FROM match_records WHERE session_id = $1`,
		sessionID,
	).Scan(
		&rec.ID, &rec.SessionID, &rec.Player1ID, &rec.Player2ID,
		&rec.Player1Score, &rec.Player2Score, &rec.WinnerID,
		&rec.Player1PreElo, &rec.Player2PreElo, &rec.Player1PostElo, &rec.Player2PostElo,
		&rec.RatingsApplied, &rec.CompletedAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchRecordNotFound
		}
		return nil, fmt.Errorf("failed to get match record: %w", err)
	}
	return &rec, nil
}
