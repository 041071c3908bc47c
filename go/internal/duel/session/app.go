package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/answer"
	"github.com/mcdev12/quizclash/go/internal/models"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
}

// SessionRepository defines what the app layer needs from the repository.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error)
	StartSession(ctx context.Context, sessionID uuid.UUID, questions []models.GameQuestion) (*models.GameSession, error)
	GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.GameQuestion, error)
	GetQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (*models.GameQuestion, error)
	MarkRevealed(ctx context.Context, sessionID, questionID, pickedBy uuid.UUID) (*models.GameQuestion, error)
	OpenBuzzer(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error)
	InsertBuzz(ctx context.Context, buzz *models.BuzzerEvent) error
	ResolveBuzzer(ctx context.Context, sessionID, questionID uuid.UUID, deadline time.Time) (*models.BuzzerEvent, error)
	ScoreQuestion(ctx context.Context, req ScoreRequest) (*ScoreResult, error)
	AbandonSession(ctx context.Context, sessionID, leaverID uuid.UUID) (*models.GameSession, error)
	GetBuzzerEvents(ctx context.Context, sessionID, questionID uuid.UUID) ([]models.BuzzerEvent, error)
}

// App drives the per-session question state machine. It owns none of the
// timers; the orchestrator fires OpenBuzzer and the timeout scorers off
// the event stream.
type App struct {
	repo  SessionRepository
	cfg   Config
	clock Clock
}

// NewApp creates a session app.
func NewApp(repo SessionRepository, cfg Config, clock Clock) *App {
	return &App{repo: repo, cfg: cfg, clock: clock}
}

// GetSession returns the session by id.
func (a *App) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	return a.repo.GetSession(ctx, sessionID)
}

// StartSession validates the board layout and moves the session into
// play. Safe to retry; a session starts at most once.
func (a *App) StartSession(ctx context.Context, sessionID uuid.UUID, questions []models.GameQuestion) (*models.GameSession, error) {
	if err := ValidateBoard(questions); err != nil {
		return nil, err
	}
	s, err := a.repo.StartSession(ctx, sessionID, questions)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("first_turn", s.CurrentTurn.String()).
		Msg("session started")
	return s, nil
}

// SelectQuestion reveals a board position. Only the player holding the
// turn may pick, only while nothing else is in flight, and only an idle
// position.
func (a *App) SelectQuestion(ctx context.Context, sessionID, playerID, questionID uuid.UUID) (*models.GameQuestion, error) {
	s, err := a.liveSession(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}
	if s.CurrentTurn != playerID {
		return nil, ErrNotYourTurn
	}

	q, err := a.repo.MarkRevealed(ctx, sessionID, questionID, playerID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", questionID.String()).
		Int("position", q.Position).
		Int("point_value", q.PointValue).
		Msg("question selected")
	return q, nil
}

// OpenBuzzer flips the current question to accepting buzzes. Called by
// the orchestrator when the reveal delay elapses; a false return means
// the question already moved on.
func (a *App) OpenBuzzer(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	return a.repo.OpenBuzzer(ctx, sessionID, questionID)
}

// Buzz records the player's buzz and resolves the race. The server clock
// decides the winner; the client timestamp is kept for diagnostics only.
// A buzz that made it in but lost the resolution race returns cleanly,
// carrying the actual winner; a buzz arriving after the race closed
// fails ErrBuzzerClosed.
func (a *App) Buzz(ctx context.Context, sessionID, playerID uuid.UUID, clientTS time.Time) (*BuzzResult, error) {
	s, err := a.liveSession(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}
	if s.CurrentQuestionID == nil {
		return nil, ErrBuzzerClosed
	}
	questionID := *s.CurrentQuestionID

	serverTS := a.clock.Now().UTC()
	buzz := &models.BuzzerEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		QuestionID: questionID,
		PlayerID:   playerID,
		ClientTS:   clientTS,
		ServerTS:   serverTS,
	}
	if err := a.repo.InsertBuzz(ctx, buzz); err != nil {
		return nil, err
	}

	deadline := serverTS.Add(a.cfg.AnswerWindow)
	winner, err := a.repo.ResolveBuzzer(ctx, sessionID, questionID, deadline)
	if errors.Is(err, ErrBuzzerClosed) {
		// A rival with an earlier server timestamp resolved first.
		return a.lostRace(ctx, sessionID, questionID, playerID, serverTS)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", questionID.String()).
		Str("winner_id", winner.PlayerID.String()).
		Time("server_ts", winner.ServerTS).
		Msg("buzzer race resolved")
	return &BuzzResult{
		Won:            winner.PlayerID == playerID,
		WinnerID:       winner.PlayerID,
		ServerTS:       serverTS,
		AnswerDeadline: &deadline,
	}, nil
}

func (a *App) lostRace(ctx context.Context, sessionID, questionID, playerID uuid.UUID, serverTS time.Time) (*BuzzResult, error) {
	q, err := a.repo.GetQuestion(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	if q.AnsweringPlayer == nil {
		return nil, ErrBuzzerClosed
	}
	return &BuzzResult{
		Won:            *q.AnsweringPlayer == playerID,
		WinnerID:       *q.AnsweringPlayer,
		ServerTS:       serverTS,
		AnswerDeadline: q.AnswerDeadline,
	}, nil
}

// SubmitAnswer validates the race winner's submission and scores the
// position. A degenerate submission rejects without consuming the
// attempt; a wrong answer deducts the point value. Either way the
// question does not pass to the opponent.
func (a *App) SubmitAnswer(ctx context.Context, sessionID, playerID uuid.UUID, submitted string) (*AnswerVerdict, error) {
	s, err := a.liveSession(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}
	if s.CurrentQuestionID == nil {
		return nil, ErrBuzzerClosed
	}
	questionID := *s.CurrentQuestionID

	q, err := a.repo.GetQuestion(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	if q.State != models.QuestionStateAnswering {
		return nil, ErrBuzzerClosed
	}
	if q.AnsweringPlayer == nil || *q.AnsweringPlayer != playerID {
		return nil, ErrNotYourTurn
	}

	now := a.clock.Now().UTC()
	if q.AnswerDeadline != nil && now.After(*q.AnswerDeadline) {
		// The window timer will score this as a timeout.
		return nil, ErrBuzzerClosed
	}

	verdict := answer.Validate(submitted, q.Answer, q.Variants)
	if verdict.Outcome == answer.OutcomeInvalid {
		return nil, ErrInvalidAnswer
	}

	correct := verdict.Outcome == answer.OutcomeCorrect
	delta := q.PointValue
	if !correct {
		delta = -q.PointValue
	}

	result, err := a.repo.ScoreQuestion(ctx, ScoreRequest{
		SessionID:  sessionID,
		QuestionID: questionID,
		AnsweredBy: &playerID,
		Correct:    correct,
		Delta:      delta,
		ScoredAt:   now,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", questionID.String()).
		Str("player_id", playerID.String()).
		Bool("correct", correct).
		Int("delta", delta).
		Bool("completed", result.Completed).
		Msg("answer scored")
	return &AnswerVerdict{
		Correct:    correct,
		Confidence: verdict.Confidence,
		Delta:      delta,
	}, nil
}

// ScoreTimeout settles a question whose window elapsed unused, either the
// answer window or the buzz window. No points move. Idempotent: a timer
// firing after the question scored is a no-op.
func (a *App) ScoreTimeout(ctx context.Context, sessionID, questionID uuid.UUID) error {
	_, err := a.repo.ScoreQuestion(ctx, ScoreRequest{
		SessionID:  sessionID,
		QuestionID: questionID,
		AnsweredBy: nil,
		Correct:    false,
		Delta:      0,
		ScoredAt:   a.clock.Now().UTC(),
	})
	if errors.Is(err, ErrBuzzerClosed) || errors.Is(err, ErrSessionInactive) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", questionID.String()).
		Msg("question timed out unanswered")
	return nil
}

// Abandon forfeits the session for playerID. The opponent wins regardless
// of the score at the time of leaving.
func (a *App) Abandon(ctx context.Context, sessionID, playerID uuid.UUID) (*models.GameSession, error) {
	s, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(s, playerID) {
		return nil, ErrNotParticipant
	}

	abandoned, err := a.repo.AbandonSession(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("leaver_id", playerID.String()).
		Msg("session abandoned")
	return abandoned, nil
}

// Snapshot builds the presentation view of the session: board state
// without answers, plus the in-flight question and its remaining time by
// the server clock.
func (a *App) Snapshot(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	s, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := a.repo.GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		SessionID:    s.ID,
		Status:       s.Status,
		Player1ID:    s.Player1ID,
		Player2ID:    s.Player2ID,
		Player1Score: s.Player1Score,
		Player2Score: s.Player2Score,
		CurrentTurn:  s.CurrentTurn,
		WinnerID:     s.WinnerID,
		Board:        make([]BoardCell, 0, len(questions)),
	}

	now := a.clock.Now().UTC()
	for _, q := range questions {
		snap.Board = append(snap.Board, BoardCell{
			QuestionID: q.QuestionID,
			Position:   q.Position,
			Category:   q.Category,
			PointValue: q.PointValue,
			State:      q.State,
			AnsweredBy: q.AnsweredBy,
			Correct:    q.Correct,
		})

		if s.CurrentQuestionID != nil && q.QuestionID == *s.CurrentQuestionID && q.State != models.QuestionStateScored {
			remaining := 0
			if q.AnswerDeadline != nil {
				if d := q.AnswerDeadline.Sub(now); d > 0 {
					remaining = int(d.Seconds() + 0.5)
				}
			}
			snap.CurrentQuestion = &CurrentQuestion{
				QuestionID:       q.QuestionID,
				Position:         q.Position,
				Category:         q.Category,
				Text:             q.Text,
				PointValue:       q.PointValue,
				State:            q.State,
				AnsweringPlayer:  q.AnsweringPlayer,
				TimeRemainingSec: remaining,
			}
		}
	}
	return snap, nil
}

func (a *App) liveSession(ctx context.Context, sessionID, playerID uuid.UUID) (*models.GameSession, error) {
	s, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(s, playerID) {
		return nil, ErrNotParticipant
	}
	if s.Status != models.SessionStatusInProgress {
		return nil, ErrSessionInactive
	}
	return s, nil
}

func isParticipant(s *models.GameSession, playerID uuid.UUID) bool {
	if s.Player1ID == playerID {
		return true
	}
	return s.Player2ID != nil && *s.Player2ID == playerID
}
