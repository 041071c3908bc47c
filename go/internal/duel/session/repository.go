package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
	"github.com/mcdev12/quizclash/go/internal/duel/outbox"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/sqlutil"
)

// Repository implements session data access. Every lifecycle transition is
// a conditional UPDATE guarded on the expected current state, so concurrent
// callers race on RowsAffected instead of on advisory locks.
type Repository struct {
	db         *sql.DB
	outboxRepo *outbox.Repository
}

func NewRepository(db *sql.DB, outboxRepo *outbox.Repository) *Repository {
	return &Repository{db: db, outboxRepo: outboxRepo}
}

// GetSession returns the session by id.
func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	return r.scanSession(r.db.QueryRowContext(ctx, `
		SELECT id, player1_id, player2_id, status,
			player1_score, player2_score, current_turn, current_question_id,
			winner_id, created_at, started_at, completed_at
		FROM game_sessions
		WHERE id = $1`,
		sessionID,
	))
}

// StartSession transitions a waiting session to in_progress and lays out
// its board in one transaction. Retrying with the same session id is a
// no-op once the session has started.
func (r *Repository) StartSession(ctx context.Context, sessionID uuid.UUID, questions []models.GameQuestion) (*models.GameSession, error) {
	if len(questions) != models.BoardSize {
		return nil, fmt.Errorf("board requires %d questions, got %d", models.BoardSize, len(questions))
	}

	var started *models.GameSession
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		s, err := r.scanSession(tx.QueryRowContext(ctx, `
			UPDATE game_sessions
			SET status = $2, started_at = $3
			WHERE id = $1 AND status = $4
			RETURNING id, player1_id, player2_id, status,
				player1_score, player2_score, current_turn, current_question_id,
				winner_id, created_at, started_at, completed_at`,
			sessionID, models.SessionStatusInProgress, now, models.SessionStatusWaiting,
		))
		if errors.Is(err, ErrSessionNotFound) {
			// Already started or gone; the caller disambiguates.
			return err
		}
		if err != nil {
			return err
		}

		for _, q := range questions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO game_questions (
					session_id, question_id, position, category, text,
					answer, variants, point_value, state
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				sessionID, q.QuestionID, q.Position, q.Category, q.Text,
				q.Answer, pq.Array(q.Variants), q.PointValue, models.QuestionStateIdle,
			); err != nil {
				return fmt.Errorf("failed to insert board position %d: %w", q.Position, err)
			}
		}

		started = s
		return r.outboxRepo.WithTx(tx).Insert(ctx, sessionID, events.TypeSessionStarted, events.SessionStartedPayload{
			SessionID: sessionID.String(),
			Player1ID: s.Player1ID.String(),
			Player2ID: s.Player2ID.String(),
			FirstTurn: s.CurrentTurn.String(),
			StartedAt: now,
		})
	})
	if errors.Is(err, ErrSessionNotFound) {
		// Idempotent start: fall back to the current row.
		current, getErr := r.GetSession(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == models.SessionStatusWaiting {
			return nil, fmt.Errorf("session %s stuck in waiting", sessionID)
		}
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	return started, nil
}

// GetQuestions returns the full board in position order, answers included.
// Callers that face the network must project through the snapshot types.
func (r *Repository) GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.GameQuestion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, question_id, position, category, text, answer,
			variants, point_value, state, answering_player, answer_deadline,
			answered_by, correct, answered_at
		FROM game_questions
		WHERE session_id = $1
		ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query board: %w", err)
	}
	defer rows.Close()

	var questions []models.GameQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetQuestion returns one board position.
func (r *Repository) GetQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (*models.GameQuestion, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx, `
		SELECT session_id, question_id, position, category, text, answer,
			variants, point_value, state, answering_player, answer_deadline,
			answered_by, correct, answered_at
		FROM game_questions
		WHERE session_id = $1 AND question_id = $2`,
		sessionID, questionID,
	))
	if errors.Is(err, errNoQuestion) {
		return nil, ErrAlreadyUsed
	}
	return q, err
}

// MarkRevealed claims the board position for play. Two guards run in one
// transaction: the session must have no question in flight, and the
// position must still be idle. Either guard failing means the
// pick lost a race or re-picked a used cell.
func (r *Repository) MarkRevealed(ctx context.Context, sessionID, questionID, pickedBy uuid.UUID) (*models.GameQuestion, error) {
	var question *models.GameQuestion
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE game_sessions
			SET current_question_id = $2
			WHERE id = $1 AND status = $3 AND current_question_id IS NULL`,
			sessionID, questionID, models.SessionStatusInProgress,
		)
		if err != nil {
			return fmt.Errorf("failed to claim current question: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrAlreadyUsed
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE game_questions
			SET state = $3
			WHERE session_id = $1 AND question_id = $2 AND state = $4
			RETURNING session_id, question_id, position, category, text, answer,
				variants, point_value, state, answering_player, answer_deadline,
				answered_by, correct, answered_at`,
			sessionID, questionID, models.QuestionStateRevealed, models.QuestionStateIdle,
		)
		q, err := scanQuestion(row)
		if errors.Is(err, errNoQuestion) {
			return ErrAlreadyUsed
		}
		if err != nil {
			return err
		}
		question = q

		return r.outboxRepo.WithTx(tx).Insert(ctx, sessionID, events.TypeQuestionSelected, events.QuestionSelectedPayload{
			SessionID:  sessionID.String(),
			QuestionID: questionID.String(),
			Position:   q.Position,
			Category:   q.Category,
			PointValue: q.PointValue,
			PickedBy:   pickedBy.String(),
			SelectedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

// OpenBuzzer transitions revealed to buzzer_open. Returns false without
// error when the position already moved on, which happens when the open
// timer fires after an abandon.
func (r *Repository) OpenBuzzer(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	opened := false
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE game_questions
			SET state = $3
			WHERE session_id = $1 AND question_id = $2 AND state = $4`,
			sessionID, questionID, models.QuestionStateBuzzerOpen, models.QuestionStateRevealed,
		)
		if err != nil {
			return fmt.Errorf("failed to open buzzer: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}
		opened = true

		return r.outboxRepo.WithTx(tx).Insert(ctx, sessionID, events.TypeBuzzerOpened, events.BuzzerOpenedPayload{
			SessionID:  sessionID.String(),
			QuestionID: questionID.String(),
			OpenedAt:   time.Now().UTC(),
		})
	})
	return opened, err
}

// InsertBuzz appends one buzz attempt while the buzzer is open. Insert
// and resolve both lock the question row first, so a buzz is recorded
// only while the row still reads buzzer_open and every recorded buzz is
// visible to the resolver that closes the race. The unique (session,
// question, player) key makes double-buzzing ErrAlreadyBuzzed.
func (r *Repository) InsertBuzz(ctx context.Context, buzz *models.BuzzerEvent) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		state, err := lockQuestion(ctx, tx, buzz.SessionID, buzz.QuestionID)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT count(*) FROM buzzer_events
			WHERE session_id = $1 AND question_id = $2 AND player_id = $3`,
			buzz.SessionID, buzz.QuestionID, buzz.PlayerID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check prior buzz: %w", err)
		}
		if count > 0 {
			return ErrAlreadyBuzzed
		}
		if state != models.QuestionStateBuzzerOpen {
			return ErrBuzzerClosed
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO buzzer_events (id, session_id, question_id, player_id, client_ts, server_ts, was_first)
			VALUES ($1, $2, $3, $4, $5, $6, false)`,
			buzz.ID, buzz.SessionID, buzz.QuestionID, buzz.PlayerID,
			buzz.ClientTS, buzz.ServerTS,
		); err != nil {
			return fmt.Errorf("failed to insert buzz: %w", err)
		}
		return nil
	})
}

// ResolveBuzzer closes the race: the earliest buzz by server timestamp
// wins, the position moves to answering, and the winner's answer window
// opens. The question row lock serializes this against InsertBuzz, so
// the minimum is taken over every buzz that made it in; exactly one
// caller per question finds the row still buzzer_open, everyone else
// sees ErrBuzzerClosed.
func (r *Repository) ResolveBuzzer(ctx context.Context, sessionID, questionID uuid.UUID, deadline time.Time) (*models.BuzzerEvent, error) {
	var winner *models.BuzzerEvent
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		state, err := lockQuestion(ctx, tx, sessionID, questionID)
		if err != nil {
			return err
		}
		if state != models.QuestionStateBuzzerOpen {
			return ErrBuzzerClosed
		}

		var w models.BuzzerEvent
		err = tx.QueryRowContext(ctx, `
			SELECT id, session_id, question_id, player_id, client_ts, server_ts, was_first
			FROM buzzer_events
			WHERE session_id = $1 AND question_id = $2
			ORDER BY server_ts, id
			LIMIT 1`,
			sessionID, questionID,
		).Scan(&w.ID, &w.SessionID, &w.QuestionID, &w.PlayerID, &w.ClientTS, &w.ServerTS, &w.WasFirst)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBuzzerClosed
		}
		if err != nil {
			return fmt.Errorf("failed to pick buzzer winner: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE game_questions
			SET state = $3, answering_player = $4, answer_deadline = $5
			WHERE session_id = $1 AND question_id = $2 AND state = $6`,
			sessionID, questionID, models.QuestionStateAnswering,
			w.PlayerID, deadline, models.QuestionStateBuzzerOpen,
		)
		if err != nil {
			return fmt.Errorf("failed to close buzzer: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrBuzzerClosed
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE buzzer_events SET was_first = true WHERE id = $1`,
			w.ID,
		); err != nil {
			return fmt.Errorf("failed to flag winning buzz: %w", err)
		}
		w.WasFirst = true
		winner = &w

		return r.outboxRepo.WithTx(tx).Insert(ctx, sessionID, events.TypeBuzzerWon, events.BuzzerWonPayload{
			SessionID:      sessionID.String(),
			QuestionID:     questionID.String(),
			PlayerID:       w.PlayerID.String(),
			ServerTS:       w.ServerTS,
			AnswerDeadline: deadline,
		})
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// lockQuestion takes the row lock on a board position and returns its
// current state. Buzz inserts and the race resolution both acquire this
// lock first, which is what orders them against each other.
func lockQuestion(ctx context.Context, tx *sql.Tx, sessionID, questionID uuid.UUID) (models.QuestionState, error) {
	var state models.QuestionState
	err := tx.QueryRowContext(ctx, `
		SELECT state FROM game_questions
		WHERE session_id = $1 AND question_id = $2
		FOR UPDATE`,
		sessionID, questionID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrBuzzerClosed
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock question: %w", err)
	}
	return state, nil
}

// ScoreQuestion settles one board position and, when it was the last one,
// completes the session. The position guard accepts answering (submission
// or answer-window timeout) and buzzer_open (nobody buzzed), and rejects
// everything else so a position scores exactly once.
func (r *Repository) ScoreQuestion(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	var result *ScoreResult
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE game_questions
			SET state = $3, answered_by = $4, correct = $5, answered_at = $6
			WHERE session_id = $1 AND question_id = $2 AND state = ANY($7)`,
			req.SessionID, req.QuestionID, models.QuestionStateScored,
			req.AnsweredBy, req.Correct, req.ScoredAt,
			pq.Array([]string{
				string(models.QuestionStateAnswering),
				string(models.QuestionStateBuzzerOpen),
				string(models.QuestionStateRevealed),
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to score question: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrBuzzerClosed
		}

		s, err := r.scanSession(tx.QueryRowContext(ctx, `
			SELECT id, player1_id, player2_id, status,
				player1_score, player2_score, current_turn, current_question_id,
				winner_id, created_at, started_at, completed_at
			FROM game_sessions
			WHERE id = $1 AND status = $2
			FOR UPDATE`,
			req.SessionID, models.SessionStatusInProgress,
		))
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionInactive
		}
		if err != nil {
			return err
		}

		if req.AnsweredBy != nil && req.Delta != 0 {
			if *req.AnsweredBy == s.Player1ID {
				s.Player1Score += req.Delta
			} else {
				s.Player2Score += req.Delta
			}
		}

		// Turn alternates on every scored position regardless of who
		// buzzed or whether the answer landed.
		nextTurn := s.Player1ID
		if s.CurrentTurn == s.Player1ID {
			nextTurn = *s.Player2ID
		}
		s.CurrentTurn = nextTurn
		s.CurrentQuestionID = nil

		var scored int
		if err := tx.QueryRowContext(ctx, `
			SELECT count(*) FROM game_questions
			WHERE session_id = $1 AND state = $2`,
			req.SessionID, models.QuestionStateScored,
		).Scan(&scored); err != nil {
			return fmt.Errorf("failed to count scored positions: %w", err)
		}
		completed := scored == models.BoardSize

		if completed {
			s.Status = models.SessionStatusCompleted
			completedAt := req.ScoredAt
			s.CompletedAt = &completedAt
			s.WinnerID = nil
			if s.Player1Score > s.Player2Score {
				s.WinnerID = &s.Player1ID
			} else if s.Player2Score > s.Player1Score {
				s.WinnerID = s.Player2ID
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE game_sessions
			SET player1_score = $2, player2_score = $3, current_turn = $4,
				current_question_id = NULL, status = $5, winner_id = $6, completed_at = $7
			WHERE id = $1`,
			s.ID, s.Player1Score, s.Player2Score, s.CurrentTurn,
			s.Status, s.WinnerID, s.CompletedAt,
		); err != nil {
			return fmt.Errorf("failed to update session score: %w", err)
		}

		ob := r.outboxRepo.WithTx(tx)
		answeredBy := ""
		if req.AnsweredBy != nil {
			answeredBy = req.AnsweredBy.String()
		}
		if err := ob.Insert(ctx, s.ID, events.TypeAnswerScored, events.AnswerScoredPayload{
			SessionID:    s.ID.String(),
			QuestionID:   req.QuestionID.String(),
			PlayerID:     answeredBy,
			Correct:      req.Correct,
			Delta:        req.Delta,
			Player1Score: s.Player1Score,
			Player2Score: s.Player2Score,
			NextTurn:     s.CurrentTurn.String(),
			ScoredAt:     req.ScoredAt,
		}); err != nil {
			return err
		}

		if completed {
			winnerID := ""
			if s.WinnerID != nil {
				winnerID = s.WinnerID.String()
			}
			if err := ob.Insert(ctx, s.ID, events.TypeSessionCompleted, events.SessionCompletedPayload{
				SessionID:    s.ID.String(),
				Player1ID:    s.Player1ID.String(),
				Player2ID:    s.Player2ID.String(),
				Player1Score: s.Player1Score,
				Player2Score: s.Player2Score,
				WinnerID:     winnerID,
				Abandoned:    false,
				CompletedAt:  req.ScoredAt,
			}); err != nil {
				return err
			}
		}

		result = &ScoreResult{Session: s, Completed: completed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AbandonSession forfeits the duel. The remaining player wins whatever the
// scores say. Guarded on the session still being live.
func (r *Repository) AbandonSession(ctx context.Context, sessionID, leaverID uuid.UUID) (*models.GameSession, error) {
	var abandoned *models.GameSession
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		s, err := r.scanSession(tx.QueryRowContext(ctx, `
			UPDATE game_sessions
			SET status = $2,
				winner_id = CASE WHEN player1_id = $3 THEN player2_id ELSE player1_id END,
				current_question_id = NULL,
				completed_at = $4
			WHERE id = $1 AND status = ANY($5)
			RETURNING id, player1_id, player2_id, status,
				player1_score, player2_score, current_turn, current_question_id,
				winner_id, created_at, started_at, completed_at`,
			sessionID, models.SessionStatusAbandoned, leaverID, now,
			pq.Array([]string{
				string(models.SessionStatusWaiting),
				string(models.SessionStatusInProgress),
			}),
		))
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionInactive
		}
		if err != nil {
			return err
		}
		abandoned = s

		winnerID := ""
		if s.WinnerID != nil {
			winnerID = s.WinnerID.String()
		}
		return r.outboxRepo.WithTx(tx).Insert(ctx, sessionID, events.TypeSessionCompleted, events.SessionCompletedPayload{
			SessionID:    s.ID.String(),
			Player1ID:    s.Player1ID.String(),
			Player2ID:    s.Player2ID.String(),
			Player1Score: s.Player1Score,
			Player2Score: s.Player2Score,
			WinnerID:     winnerID,
			Abandoned:    true,
			CompletedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	return abandoned, nil
}

// GetBuzzerEvents returns the buzz log for one question, race order.
func (r *Repository) GetBuzzerEvents(ctx context.Context, sessionID, questionID uuid.UUID) ([]models.BuzzerEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, question_id, player_id, client_ts, server_ts, was_first
		FROM buzzer_events
		WHERE session_id = $1 AND question_id = $2
		ORDER BY server_ts, id`,
		sessionID, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query buzzer events: %w", err)
	}
	defer rows.Close()

	var eventsList []models.BuzzerEvent
	for rows.Next() {
		var b models.BuzzerEvent
		if err := rows.Scan(&b.ID, &b.SessionID, &b.QuestionID, &b.PlayerID, &b.ClientTS, &b.ServerTS, &b.WasFirst); err != nil {
			return nil, fmt.Errorf("failed to scan buzzer event: %w", err)
		}
		eventsList = append(eventsList, b)
	}
	return eventsList, rows.Err()
}

var errNoQuestion = errors.New("question not found")

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanSession(row rowScanner) (*models.GameSession, error) {
	var s models.GameSession
	var player2ID, currentQuestionID, winnerID uuid.NullUUID
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.Player1ID, &player2ID, &s.Status,
		&s.Player1Score, &s.Player2Score, &s.CurrentTurn, &currentQuestionID,
		&winnerID, &s.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if player2ID.Valid {
		s.Player2ID = &player2ID.UUID
	}
	if currentQuestionID.Valid {
		s.CurrentQuestionID = &currentQuestionID.UUID
	}
	if winnerID.Valid {
		s.WinnerID = &winnerID.UUID
	}
	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

func scanQuestion(row rowScanner) (*models.GameQuestion, error) {
	var q models.GameQuestion
	var variants pq.StringArray
	var answeringPlayer, answeredBy uuid.NullUUID
	var answerDeadline, answeredAt sql.NullTime
	var correct sql.NullBool
	err := row.Scan(
		&q.SessionID, &q.QuestionID, &q.Position, &q.Category, &q.Text,
		&q.Answer, &variants, &q.PointValue, &q.State,
		&answeringPlayer, &answerDeadline, &answeredBy, &correct, &answeredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoQuestion
		}
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}
	q.Variants = variants
	if answeringPlayer.Valid {
		q.AnsweringPlayer = &answeringPlayer.UUID
	}
	if answerDeadline.Valid {
		q.AnswerDeadline = &answerDeadline.Time
	}
	if answeredBy.Valid {
		q.AnsweredBy = &answeredBy.UUID
	}
	if correct.Valid {
		q.Correct = &correct.Bool
	}
	if answeredAt.Valid {
		q.AnsweredAt = &answeredAt.Time
	}
	return &q, nil
}
