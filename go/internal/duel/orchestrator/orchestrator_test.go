package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclash/go/internal/duel/events"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/players"
)

type fakeSessionApp struct {
	mu       sync.Mutex
	started  []uuid.UUID
	opened   []uuid.UUID
	timeouts []uuid.UUID
}

func (f *fakeSessionApp) StartSession(_ context.Context, sessionID uuid.UUID, _ []models.GameQuestion) (*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sessionID)
	return &models.GameSession{ID: sessionID, Status: models.SessionStatusInProgress}, nil
}

func (f *fakeSessionApp) OpenBuzzer(_ context.Context, _, questionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, questionID)
	return true, nil
}

func (f *fakeSessionApp) ScoreTimeout(_ context.Context, _, questionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, questionID)
	return nil
}

func (f *fakeSessionApp) openedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeSessionApp) timeoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timeouts)
}

type fakeSettler struct {
	mu       sync.Mutex
	failures int
	calls    int
	settled  []players.CompletedMatch
}

func (f *fakeSettler) SettleMatch(_ context.Context, m players.CompletedMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient settle failure")
	}
	f.settled = append(f.settled, m)
	return nil
}

type fakeBoards struct {
	mu    sync.Mutex
	built []uuid.UUID
}

func (f *fakeBoards) BuildBoard(_ context.Context, sessionID uuid.UUID) ([]models.GameQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, sessionID)
	return make([]models.GameQuestion, models.BoardSize), nil
}

type harness struct {
	orch     *Orchestrator
	sessions *fakeSessionApp
	settler  *fakeSettler
	boards   *fakeBoards
	clock    *clockwork.FakeClock
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sessions := &fakeSessionApp{}
	settler := &fakeSettler{}
	boards := &fakeBoards{}
	clock := clockwork.NewFakeClock()

	cfg := session.DefaultConfig()
	orch := New(sessions, settler, boards, cfg).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	orch.startWorkers(ctx, &wg)
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &harness{orch: orch, sessions: sessions, settler: settler, boards: boards, clock: clock, cancel: cancel}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func marshal(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestQueueMatchedBuildsBoardAndStartsSession(t *testing.T) {
	h := newHarness(t)
	sessionID := uuid.New()

	payload := marshal(t, events.QueueMatchedPayload{
		SessionID: sessionID.String(),
		Player1ID: uuid.New().String(),
		Player2ID: uuid.New().String(),
		MatchedAt: time.Now().UTC(),
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeQueueMatched, sessionID, payload); err != nil {
		t.Fatalf("HandleDomainEvent: %v", err)
	}

	if len(h.boards.built) != 1 || h.boards.built[0] != sessionID {
		t.Fatal("board was not built for the new session")
	}
	if len(h.sessions.started) != 1 || h.sessions.started[0] != sessionID {
		t.Fatal("session was not started")
	}
}

func TestQuestionSelectedOpensBuzzerAfterRevealDelay(t *testing.T) {
	h := newHarness(t)
	sessionID, questionID := uuid.New(), uuid.New()

	payload := marshal(t, events.QuestionSelectedPayload{
		SessionID:  sessionID.String(),
		QuestionID: questionID.String(),
		Position:   3,
		PointValue: 800,
		PickedBy:   uuid.New().String(),
		SelectedAt: h.clock.Now(),
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeQuestionSelected, sessionID, payload); err != nil {
		t.Fatalf("HandleDomainEvent: %v", err)
	}

	if h.sessions.openedCount() != 0 {
		t.Fatal("buzzer opened before the reveal delay elapsed")
	}

	h.clock.BlockUntil(1)
	h.clock.Advance(session.DefaultConfig().BuzzerDelayMax)
	waitFor(t, func() bool { return h.sessions.openedCount() == 1 }, "buzzer never opened")
}

func TestBuzzerWonSchedulesAnswerTimeout(t *testing.T) {
	h := newHarness(t)
	sessionID, questionID := uuid.New(), uuid.New()

	deadline := h.clock.Now().Add(5 * time.Second)
	payload := marshal(t, events.BuzzerWonPayload{
		SessionID:      sessionID.String(),
		QuestionID:     questionID.String(),
		PlayerID:       uuid.New().String(),
		ServerTS:       h.clock.Now(),
		AnswerDeadline: deadline,
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeBuzzerWon, sessionID, payload); err != nil {
		t.Fatalf("HandleDomainEvent: %v", err)
	}

	h.clock.BlockUntil(1)
	h.clock.Advance(5 * time.Second)
	waitFor(t, func() bool { return h.sessions.timeoutCount() == 1 }, "answer window never timed out")
}

func TestAnswerScoredCancelsPendingTimeout(t *testing.T) {
	h := newHarness(t)
	sessionID, questionID := uuid.New(), uuid.New()

	wonPayload := marshal(t, events.BuzzerWonPayload{
		SessionID:      sessionID.String(),
		QuestionID:     questionID.String(),
		PlayerID:       uuid.New().String(),
		ServerTS:       h.clock.Now(),
		AnswerDeadline: h.clock.Now().Add(5 * time.Second),
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeBuzzerWon, sessionID, wonPayload); err != nil {
		t.Fatalf("BuzzerWon: %v", err)
	}
	h.clock.BlockUntil(1)

	scoredPayload := marshal(t, events.AnswerScoredPayload{
		SessionID:  sessionID.String(),
		QuestionID: questionID.String(),
		Correct:    true,
		Delta:      800,
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeAnswerScored, sessionID, scoredPayload); err != nil {
		t.Fatalf("AnswerScored: %v", err)
	}

	h.clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	if n := h.sessions.timeoutCount(); n != 0 {
		t.Fatalf("cancelled timer still fired %d timeout(s)", n)
	}
}

func TestSessionCompletedSettlesWithRetry(t *testing.T) {
	h := newHarness(t)
	h.settler.failures = 2
	sessionID := uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	payload := marshal(t, events.SessionCompletedPayload{
		SessionID:    sessionID.String(),
		Player1ID:    p1.String(),
		Player2ID:    p2.String(),
		Player1Score: 3200,
		Player2Score: 1800,
		WinnerID:     p1.String(),
		CompletedAt:  time.Now().UTC(),
	})

	done := make(chan error, 1)
	go func() {
		done <- h.orch.HandleDomainEvent(context.Background(), events.TypeSessionCompleted, sessionID, payload)
	}()

	// Two failures mean two backoff sleeps before the third attempt lands.
	for i := 0; i < 2; i++ {
		h.clock.BlockUntil(1)
		h.clock.Advance(settleBackoff)
	}

	if err := <-done; err != nil {
		t.Fatalf("HandleDomainEvent: %v", err)
	}
	h.settler.mu.Lock()
	defer h.settler.mu.Unlock()
	if h.settler.calls != 3 {
		t.Fatalf("settler called %d times, want 3", h.settler.calls)
	}
	if len(h.settler.settled) != 1 {
		t.Fatal("match never settled")
	}
	m := h.settler.settled[0]
	if m.SessionID != sessionID || m.WinnerID == nil || *m.WinnerID != p1 {
		t.Fatalf("settled match mismatch: %+v", m)
	}
}

func TestDrawCompletionSettlesWithoutWinner(t *testing.T) {
	h := newHarness(t)
	sessionID := uuid.New()

	payload := marshal(t, events.SessionCompletedPayload{
		SessionID:    sessionID.String(),
		Player1ID:    uuid.New().String(),
		Player2ID:    uuid.New().String(),
		Player1Score: 2000,
		Player2Score: 2000,
		CompletedAt:  time.Now().UTC(),
	})
	if err := h.orch.HandleDomainEvent(context.Background(), events.TypeSessionCompleted, sessionID, payload); err != nil {
		t.Fatalf("HandleDomainEvent: %v", err)
	}

	h.settler.mu.Lock()
	defer h.settler.mu.Unlock()
	if len(h.settler.settled) != 1 {
		t.Fatal("draw was not settled")
	}
	if h.settler.settled[0].WinnerID != nil {
		t.Fatal("draw must settle with no winner")
	}
}
