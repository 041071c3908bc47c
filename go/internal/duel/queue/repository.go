package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
	"github.com/mcdev12/quizclash/go/internal/duel/outbox"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/sqlutil"
)

// Repository implements queue-entry data access. Pairing spans two entries
// plus the new session row, so the repository holds the *sql.DB to run
// that as one guarded transaction.
type Repository struct {
	db         *sql.DB
	outboxRepo *outbox.Repository
}

func NewRepository(db *sql.DB, outboxRepo *outbox.Repository) *Repository {
	return &Repository{db: db, outboxRepo: outboxRepo}
}

// InsertEntry creates a waiting entry for the player, cancelling any prior
// waiting entry in the same transaction. Re-enqueueing is idempotent.
func (r *Repository) InsertEntry(ctx context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		ID:         uuid.New(),
		PlayerID:   playerID,
		Rating:     elo,
		Status:     models.QueueStatusWaiting,
		EnqueuedAt: time.Now().UTC(),
	}

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status = $2
			WHERE player_id = $1 AND status = $3`,
			playerID, models.QueueStatusCancelled, models.QueueStatusWaiting,
		); err != nil {
			return fmt.Errorf("failed to cancel prior entry: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO queue_entries (id, player_id, rating, status, enqueued_at)
			VALUES ($1, $2, $3, $4, $5)`,
			entry.ID, entry.PlayerID, entry.Rating, entry.Status, entry.EnqueuedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetWaitingEntry returns the player's waiting entry, if any.
func (r *Repository) GetWaitingEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	return r.scanEntry(r.db.QueryRowContext(ctx, `
		SELECT id, player_id, rating, status, enqueued_at, matched_at, session_id
		FROM queue_entries
		WHERE player_id = $1 AND status = $2`,
		playerID, models.QueueStatusWaiting,
	))
}

// GetLatestEntry returns the player's most recent entry regardless of
// status, for status snapshots after a match or timeout.
func (r *Repository) GetLatestEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	return r.scanEntry(r.db.QueryRowContext(ctx, `
		SELECT id, player_id, rating, status, enqueued_at, matched_at, session_id
		FROM queue_entries
		WHERE player_id = $1
		ORDER BY enqueued_at DESC
		LIMIT 1`,
		playerID,
	))
}

// FindCandidate returns the longest-waiting other entry within the ELO
// radius, or ErrOpponentNotFound.
func (r *Repository) FindCandidate(ctx context.Context, playerID uuid.UUID, elo, radius int) (*models.QueueEntry, error) {
	entry, err := r.scanEntry(r.db.QueryRowContext(ctx, `
		SELECT id, player_id, rating, status, enqueued_at, matched_at, session_id
		FROM queue_entries
		WHERE status = $1 AND player_id <> $2 AND abs(rating - $3) <= $4
		ORDER BY enqueued_at
		LIMIT 1`,
		models.QueueStatusWaiting, playerID, elo, radius,
	))
	if errors.Is(err, ErrNoActiveEntry) {
		return nil, ErrOpponentNotFound
	}
	return entry, err
}

// PairEntries atomically marks both entries matched and creates the
// session, in a single transaction guarded on both entries still waiting.
// Either guard failing aborts with ErrPairingConflict, which is how two
// concurrent search cycles are prevented from claiming the same opponent.
func (r *Repository) PairEntries(ctx context.Context, entry1ID, entry2ID uuid.UUID, session *models.GameSession) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		for _, entryID := range []uuid.UUID{entry1ID, entry2ID} {
			res, err := tx.ExecContext(ctx, `
				UPDATE queue_entries
				SET status = $2, matched_at = $3, session_id = $4
				WHERE id = $1 AND status = $5`,
				entryID, models.QueueStatusMatched, now, session.ID, models.QueueStatusWaiting,
			)
			if err != nil {
				return fmt.Errorf("failed to mark entry matched: %w", err)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return ErrPairingConflict
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_sessions (
				id, player1_id, player2_id, status,
				player1_score, player2_score, current_turn, created_at
			) VALUES ($1, $2, $3, $4, 0, 0, $2, $5)`,
			session.ID, session.Player1ID, session.Player2ID, models.SessionStatusWaiting, now,
		)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		return r.outboxRepo.WithTx(tx).Insert(ctx, session.ID, events.TypeQueueMatched, events.QueueMatchedPayload{
			SessionID: session.ID.String(),
			Player1ID: session.Player1ID.String(),
			Player2ID: session.Player2ID.String(),
			MatchedAt: now,
		})
	})
}

// CancelEntry transitions a waiting entry to cancelled. Returns false when
// no waiting entry existed.
func (r *Repository) CancelEntry(ctx context.Context, playerID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries SET status = $2
		WHERE player_id = $1 AND status = $3`,
		playerID, models.QueueStatusCancelled, models.QueueStatusWaiting,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// ExpireEntry transitions one waiting entry to expired and records the
// QueueTimedOut event in the same transaction. Returns the entry, or
// ErrNoActiveEntry when the entry already left the waiting state.
func (r *Repository) ExpireEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	var entry *models.QueueEntry
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE queue_entries SET status = $2
			WHERE player_id = $1 AND status = $3
			RETURNING id, player_id, rating, status, enqueued_at, matched_at, session_id`,
			playerID, models.QueueStatusExpired, models.QueueStatusWaiting,
		)
		e, err := r.scanEntry(row)
		if err != nil {
			return err
		}
		entry = e

		now := time.Now().UTC()
		return r.outboxRepo.WithTx(tx).Insert(ctx, playerID, events.TypeQueueTimedOut, events.QueueTimedOutPayload{
			PlayerID:  playerID.String(),
			WaitedSec: int(now.Sub(e.EnqueuedAt).Seconds()),
			ExpiredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ExpireOlderThan purges all waiting entries enqueued before cutoff,
// returning the players affected. Used by the periodic sweep that backs
// up the per-entry timers.
func (r *Repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE queue_entries SET status = $1
		WHERE status = $2 AND enqueued_at < $3
		RETURNING player_id`,
		models.QueueStatusExpired, models.QueueStatusWaiting, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale entries: %w", err)
	}
	defer rows.Close()

	var players []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired entry: %w", err)
		}
		players = append(players, id)
	}
	return players, rows.Err()
}

// Stats summarizes the waiting pool.
func (r *Repository) Stats(ctx context.Context) (*models.QueueStats, error) {
	var stats models.QueueStats
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*),
			coalesce(avg(rating), 0),
			coalesce(avg(extract(epoch from now() - enqueued_at)), 0)
		FROM queue_entries
		WHERE status = $1`,
		models.QueueStatusWaiting,
	).Scan(&stats.Waiting, &stats.AvgRating, &stats.AvgWaitSec)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return &stats, nil
}

func (r *Repository) scanEntry(row *sql.Row) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var matchedAt sql.NullTime
	var sessionID uuid.NullUUID
	err := row.Scan(&e.ID, &e.PlayerID, &e.Rating, &e.Status, &e.EnqueuedAt, &matchedAt, &sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveEntry
		}
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}
	if matchedAt.Valid {
		e.MatchedAt = &matchedAt.Time
	}
	if sessionID.Valid {
		e.SessionID = &sessionID.UUID
	}
	return &e, nil
}
