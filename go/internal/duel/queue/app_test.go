package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclash/go/internal/models"
)

// fakeRepo implements QueueRepository in memory with the same
// conditional-update semantics as the SQL repository.
type fakeRepo struct {
	mu       sync.Mutex
	clock    Clock
	entries  map[uuid.UUID]*models.QueueEntry // by entry id
	sessions map[uuid.UUID]*models.GameSession
	events   []string

	pairFailures int // inject ErrPairingConflict this many times
}

func newFakeRepo(clock Clock) *fakeRepo {
	return &fakeRepo{
		clock:    clock,
		entries:  make(map[uuid.UUID]*models.QueueEntry),
		sessions: make(map[uuid.UUID]*models.GameSession),
	}
}

func (f *fakeRepo) InsertEntry(ctx context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PlayerID == playerID && e.Status == models.QueueStatusWaiting {
			e.Status = models.QueueStatusCancelled
		}
	}
	entry := &models.QueueEntry{
		ID:         uuid.New(),
		PlayerID:   playerID,
		Rating:     elo,
		Status:     models.QueueStatusWaiting,
		EnqueuedAt: f.clock.Now(),
	}
	f.entries[entry.ID] = entry
	return copyEntry(entry), nil
}

func (f *fakeRepo) GetWaitingEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PlayerID == playerID && e.Status == models.QueueStatusWaiting {
			return copyEntry(e), nil
		}
	}
	return nil, ErrNoActiveEntry
}

func (f *fakeRepo) GetLatestEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.QueueEntry
	for _, e := range f.entries {
		if e.PlayerID != playerID {
			continue
		}
		if latest == nil || e.EnqueuedAt.After(latest.EnqueuedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNoActiveEntry
	}
	return copyEntry(latest), nil
}

func (f *fakeRepo) FindCandidate(ctx context.Context, playerID uuid.UUID, elo, radius int) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.QueueEntry
	for _, e := range f.entries {
		if e.PlayerID == playerID || e.Status != models.QueueStatusWaiting {
			continue
		}
		diff := e.Rating - elo
		if diff < 0 {
			diff = -diff
		}
		if diff > radius {
			continue
		}
		if best == nil || e.EnqueuedAt.Before(best.EnqueuedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrOpponentNotFound
	}
	return copyEntry(best), nil
}

func (f *fakeRepo) PairEntries(ctx context.Context, entry1ID, entry2ID uuid.UUID, session *models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pairFailures > 0 {
		f.pairFailures--
		return ErrPairingConflict
	}
	e1, ok1 := f.entries[entry1ID]
	e2, ok2 := f.entries[entry2ID]
	if !ok1 || !ok2 || e1.Status != models.QueueStatusWaiting || e2.Status != models.QueueStatusWaiting {
		return ErrPairingConflict
	}
	now := f.clock.Now()
	for _, e := range []*models.QueueEntry{e1, e2} {
		e.Status = models.QueueStatusMatched
		e.MatchedAt = &now
		sid := session.ID
		e.SessionID = &sid
	}
	f.sessions[session.ID] = session
	f.events = append(f.events, "QueueMatched")
	return nil
}

func (f *fakeRepo) CancelEntry(ctx context.Context, playerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PlayerID == playerID && e.Status == models.QueueStatusWaiting {
			e.Status = models.QueueStatusCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ExpireEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PlayerID == playerID && e.Status == models.QueueStatusWaiting {
			e.Status = models.QueueStatusExpired
			f.events = append(f.events, "QueueTimedOut")
			return copyEntry(e), nil
		}
	}
	return nil, ErrNoActiveEntry
}

func (f *fakeRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var players []uuid.UUID
	for _, e := range f.entries {
		if e.Status == models.QueueStatusWaiting && e.EnqueuedAt.Before(cutoff) {
			e.Status = models.QueueStatusExpired
			players = append(players, e.PlayerID)
		}
	}
	return players, nil
}

func (f *fakeRepo) Stats(ctx context.Context) (*models.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.QueueStats{}
	var ratingSum, waitSum float64
	for _, e := range f.entries {
		if e.Status != models.QueueStatusWaiting {
			continue
		}
		stats.Waiting++
		ratingSum += float64(e.Rating)
		waitSum += f.clock.Now().Sub(e.EnqueuedAt).Seconds()
	}
	if stats.Waiting > 0 {
		stats.AvgRating = ratingSum / float64(stats.Waiting)
		stats.AvgWaitSec = waitSum / float64(stats.Waiting)
	}
	return stats, nil
}

func (f *fakeRepo) entryStatus(playerID uuid.UUID) models.QueueStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.QueueEntry
	for _, e := range f.entries {
		if e.PlayerID != playerID {
			continue
		}
		if latest == nil || e.EnqueuedAt.After(latest.EnqueuedAt) {
			latest = e
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Status
}

func (f *fakeRepo) eventCount(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == eventType {
			n++
		}
	}
	return n
}

func copyEntry(e *models.QueueEntry) *models.QueueEntry {
	c := *e
	return &c
}

// quietConfig keeps timers out of the way so tests drive TryMatch
// directly.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	cfg.Timeout = 2 * time.Hour
	return cfg
}

func TestEnqueuePairsWithinOneCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()

	if _, err := app.Enqueue(ctx, p1, 1200); err != nil {
		t.Fatalf("enqueue p1: %v", err)
	}
	// Ratings 50 apart: inside the initial +-100 radius, so p2's enqueue
	// pairs immediately.
	if _, err := app.Enqueue(ctx, p2, 1250); err != nil {
		t.Fatalf("enqueue p2: %v", err)
	}

	if got := repo.entryStatus(p1); got != models.QueueStatusMatched {
		t.Errorf("p1 status = %s, want matched", got)
	}
	if got := repo.entryStatus(p2); got != models.QueueStatusMatched {
		t.Errorf("p2 status = %s, want matched", got)
	}
	if n := repo.eventCount("QueueMatched"); n != 1 {
		t.Errorf("QueueMatched events = %d, want 1", n)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("sessions created = %d, want 1", len(repo.sessions))
	}
	for _, s := range repo.sessions {
		// The longer-waiting player picks first.
		if s.Player1ID != p1 {
			t.Errorf("player1 = %s, want the longer-waiting %s", s.Player1ID, p1)
		}
	}
}

func TestRatingGapBlocksUntilRadiusExpands(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()

	if _, err := app.Enqueue(ctx, p1, 1200); err != nil {
		t.Fatalf("enqueue p1: %v", err)
	}
	if _, err := app.Enqueue(ctx, p2, 1500); err != nil {
		t.Fatalf("enqueue p2: %v", err)
	}

	// 300 apart: no pairing at the initial +-100 radius.
	if got := repo.entryStatus(p1); got != models.QueueStatusWaiting {
		t.Fatalf("p1 status = %s, want still waiting", got)
	}

	// After two interval steps the radius reaches 300 and the gap closes.
	clock.Advance(20 * time.Second)
	session, err := app.TryMatch(ctx, p2)
	if err != nil {
		t.Fatalf("TryMatch after radius expansion: %v", err)
	}
	if session.Player1ID != p1 {
		t.Errorf("player1 = %s, want %s", session.Player1ID, p1)
	}
}

func TestLoneEntryTimesOutToIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Second
	cfg.Timeout = 12 * time.Second
	app := NewApp(repo, cfg, clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Run(ctx)

	p1 := uuid.New()
	if _, err := app.Enqueue(ctx, p1, 1200); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Walk the one-shot timer chain: two poll cycles, then the expiry
	// fire. BlockUntil synchronizes with the goroutine arming each timer.
	for i := 0; i < 3; i++ {
		clock.BlockUntil(1)
		clock.Advance(5 * time.Second)
	}

	waitFor(t, func() bool {
		return repo.entryStatus(p1) == models.QueueStatusExpired
	}, "entry expired to idle")

	if n := repo.eventCount("QueueMatched"); n != 0 {
		t.Errorf("QueueMatched events = %d, want 0 for a lone entry", n)
	}
	if n := repo.eventCount("QueueTimedOut"); n != 1 {
		t.Errorf("QueueTimedOut events = %d, want 1", n)
	}

	snap, err := app.Status(ctx, p1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.State != SearchStateIdle {
		t.Errorf("status state = %s, want idle", snap.State)
	}
}

func TestReEnqueueReplacesPriorEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)
	ctx := context.Background()

	p1 := uuid.New()
	if _, err := app.Enqueue(ctx, p1, 1200); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := app.Enqueue(ctx, p1, 1210); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	stats, err := app.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 1 {
		t.Errorf("waiting entries = %d, want 1 after re-enqueue", stats.Waiting)
	}
	if stats.AvgRating != 1210 {
		t.Errorf("avg rating = %v, want the replacement entry's 1210", stats.AvgRating)
	}
}

func TestPairingConflictRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()
	if _, err := app.Enqueue(ctx, p1, 1200); err != nil {
		t.Fatalf("enqueue p1: %v", err)
	}

	// First pairing attempt loses the race; the bounded retry wins.
	repo.mu.Lock()
	repo.pairFailures = 1
	repo.mu.Unlock()

	if _, err := app.Enqueue(ctx, p2, 1220); err != nil {
		t.Fatalf("enqueue p2: %v", err)
	}
	if got := repo.entryStatus(p2); got != models.QueueStatusMatched {
		t.Errorf("p2 status = %s, want matched after retry", got)
	}
}

func TestRunConcurrentWithEnqueue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	// Ratings 400 apart stay outside the initial radius, so every enqueue
	// schedules a search task whose goroutine reads the run context while
	// Run installs it. Run under -race this exercises that handoff.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			if _, err := app.Enqueue(context.Background(), uuid.New(), rating); err != nil {
				t.Errorf("enqueue: %v", err)
			}
		}(1000 + 400*i)
	}
	wg.Wait()

	cancel()
	<-done

	app.activeTimersMu.Lock()
	remaining := len(app.activeTimers)
	app.activeTimersMu.Unlock()
	if remaining != 0 {
		t.Errorf("timers left after shutdown = %d, want 0", remaining)
	}
}

func TestCancelWithoutEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo(clock)
	app := NewApp(repo, quietConfig(), clock)

	err := app.Cancel(context.Background(), uuid.New())
	if !errors.Is(err, ErrNoActiveEntry) {
		t.Errorf("cancel without entry = %v, want ErrNoActiveEntry", err)
	}
}

func TestRadiusSchedule(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		waited time.Duration
		want   int
	}{
		{0, 100},
		{9 * time.Second, 100},
		{10 * time.Second, 200},
		{25 * time.Second, 300},
		{2 * time.Minute, 500}, // capped
	}
	for _, tt := range tests {
		if got := cfg.RadiusAt(tt.waited); got != tt.want {
			t.Errorf("RadiusAt(%v) = %d, want %d", tt.waited, got, tt.want)
		}
	}
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
	t.Fatalf("timed out waiting for: %s", msg)
}
