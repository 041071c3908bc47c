package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/models"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// QueueRepository defines what the app layer needs from the repository.
type QueueRepository interface {
	InsertEntry(ctx context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error)
	GetWaitingEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error)
	GetLatestEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error)
	FindCandidate(ctx context.Context, playerID uuid.UUID, elo, radius int) (*models.QueueEntry, error)
	PairEntries(ctx context.Context, entry1ID, entry2ID uuid.UUID, session *models.GameSession) error
	CancelEntry(ctx context.Context, playerID uuid.UUID) (bool, error)
	ExpireEntry(ctx context.Context, playerID uuid.UUID) (*models.QueueEntry, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
}

// App runs matchmaking. Every waiting entry owns one scheduled task that
// periodically retries the search with a widening ELO radius and expires
// the entry at the overall timeout. Tasks are keyed by player id and
// cancelled the moment the entry leaves the waiting state.
type App struct {
	repo  QueueRepository
	cfg   Config
	clock Clock

	runCtx   context.Context
	runCtxMu sync.RWMutex

	activeTimers   map[uuid.UUID]clockwork.Timer
	activeTimersMu sync.Mutex
}

// NewApp creates a matchmaking app.
func NewApp(repo QueueRepository, cfg Config, clock Clock) *App {
	return &App{
		repo:         repo,
		cfg:          cfg,
		clock:        clock,
		runCtx:       context.Background(),
		activeTimers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// Run anchors the search tasks to ctx and blocks until it is cancelled,
// then stops every outstanding timer.
func (a *App) Run(ctx context.Context) error {
	a.runCtxMu.Lock()
	a.runCtx = ctx
	a.runCtxMu.Unlock()
	<-ctx.Done()

	a.activeTimersMu.Lock()
	for playerID, timer := range a.activeTimers {
		stopAndDrainTimer(timer)
		log.Debug().Str("player_id", playerID.String()).Msg("cancelled search task on shutdown")
	}
	a.activeTimers = make(map[uuid.UUID]clockwork.Timer)
	a.activeTimersMu.Unlock()

	return nil
}

// Enqueue inserts (or replaces) the player's waiting entry and kicks off
// its search task. An immediate match attempt runs before the first poll
// so two compatible players pair within one cycle.
func (a *App) Enqueue(ctx context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error) {
	entry, err := a.repo.InsertEntry(ctx, playerID, elo)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("player_id", playerID.String()).
		Int("rating", elo).
		Msg("player enqueued")

	if _, err := a.TryMatch(ctx, playerID); err != nil && !errors.Is(err, ErrOpponentNotFound) {
		log.Error().Err(err).Str("player_id", playerID.String()).Msg("initial match attempt failed")
	}

	return entry, nil
}

// TryMatch runs one search cycle for the player: compute the current
// radius, look for a candidate, and pair atomically. A lost pairing race
// is retried against fresh candidates a bounded number of times.
// ErrOpponentNotFound means nobody is in range right now.
func (a *App) TryMatch(ctx context.Context, playerID uuid.UUID) (*models.GameSession, error) {
	entry, err := a.repo.GetWaitingEntry(ctx, playerID)
	if err != nil {
		return nil, err
	}

	radius := a.cfg.RadiusAt(a.clock.Now().Sub(entry.EnqueuedAt))

	for attempt := 0; attempt <= a.cfg.PairRetries; attempt++ {
		candidate, err := a.repo.FindCandidate(ctx, playerID, entry.Rating, radius)
		if err != nil {
			if errors.Is(err, ErrOpponentNotFound) {
				a.scheduleNextCycle(playerID, entry.EnqueuedAt)
			}
			return nil, err
		}

		// The longer-waiting player picks first.
		session := &models.GameSession{
			ID:        uuid.New(),
			Player1ID: candidate.PlayerID,
			Player2ID: &entry.PlayerID,
		}

		if err := a.repo.PairEntries(ctx, candidate.ID, entry.ID, session); err != nil {
			if errors.Is(err, ErrPairingConflict) {
				log.Debug().
					Str("player_id", playerID.String()).
					Int("attempt", attempt+1).
					Msg("lost pairing race, retrying")
				continue
			}
			return nil, err
		}

		a.cancelTimer(candidate.PlayerID)
		a.cancelTimer(entry.PlayerID)

		log.Info().
			Str("session_id", session.ID.String()).
			Str("player1_id", session.Player1ID.String()).
			Str("player2_id", session.Player2ID.String()).
			Int("radius", radius).
			Msg("players paired")
		return session, nil
	}

	// Every candidate was claimed by someone else; try again next cycle.
	a.scheduleNextCycle(playerID, entry.EnqueuedAt)
	return nil, ErrPairingConflict
}

// Cancel removes the player's waiting entry and stops its search task.
func (a *App) Cancel(ctx context.Context, playerID uuid.UUID) error {
	cancelled, err := a.repo.CancelEntry(ctx, playerID)
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrNoActiveEntry
	}
	a.cancelTimer(playerID)
	log.Info().Str("player_id", playerID.String()).Msg("queue entry cancelled")
	return nil
}

// Status reports where the player's matchmaking request stands.
func (a *App) Status(ctx context.Context, playerID uuid.UUID) (*StatusSnapshot, error) {
	entry, err := a.repo.GetLatestEntry(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNoActiveEntry) {
			return &StatusSnapshot{State: SearchStateIdle}, nil
		}
		return nil, err
	}

	elapsed := int(a.clock.Now().Sub(entry.EnqueuedAt).Seconds())
	switch entry.Status {
	case models.QueueStatusWaiting:
		return &StatusSnapshot{
			State:      SearchStateSearching,
			ElapsedSec: elapsed,
			Radius:     a.cfg.RadiusAt(a.clock.Now().Sub(entry.EnqueuedAt)),
		}, nil
	case models.QueueStatusMatched:
		snap := &StatusSnapshot{State: SearchStateFound, ElapsedSec: elapsed}
		if entry.SessionID != nil {
			snap.SessionID = entry.SessionID.String()
		}
		return snap, nil
	default:
		return &StatusSnapshot{State: SearchStateIdle, ElapsedSec: elapsed}, nil
	}
}

// Stats reports count, average rating, and average wait over the current
// waiting pool.
func (a *App) Stats(ctx context.Context) (*models.QueueStats, error) {
	return a.repo.Stats(ctx)
}

// CleanupExpired purges waiting entries past the timeout. This is the
// sweep behind the per-entry timers, catching entries orphaned by a
// restart.
func (a *App) CleanupExpired(ctx context.Context) (int, error) {
	players, err := a.repo.ExpireOlderThan(ctx, a.clock.Now().Add(-a.cfg.Timeout))
	if err != nil {
		return 0, err
	}
	for _, playerID := range players {
		a.cancelTimer(playerID)
	}
	if len(players) > 0 {
		log.Info().Int("count", len(players)).Msg("expired stale queue entries")
	}
	return len(players), nil
}

// scheduleNextCycle arms the entry's one-shot timer for the next search
// attempt, or for expiry once the overall timeout is closer than the poll
// interval.
func (a *App) scheduleNextCycle(playerID uuid.UUID, enqueuedAt time.Time) {
	remaining := enqueuedAt.Add(a.cfg.Timeout).Sub(a.clock.Now())
	if remaining <= 0 {
		a.expireEntry(a.searchCtx(), playerID)
		return
	}

	wait := a.cfg.PollInterval
	expiring := false
	if remaining <= wait {
		wait = remaining
		expiring = true
	}

	timer := a.clock.NewTimer(wait)
	a.replaceTimer(playerID, timer)

	go func(id uuid.UUID, t clockwork.Timer, expire bool) {
		ctx := a.searchCtx()
		select {
		case <-t.Chan():
			a.removeTimer(id)
			if expire {
				a.expireEntry(ctx, id)
				return
			}
			if _, err := a.TryMatch(ctx, id); err != nil &&
				!errors.Is(err, ErrOpponentNotFound) && !errors.Is(err, ErrNoActiveEntry) {
				log.Error().Err(err).Str("player_id", id.String()).Msg("search cycle failed")
			}
		case <-ctx.Done():
			stopAndDrainTimer(t)
			a.removeTimer(id)
		}
	}(playerID, timer, expiring)
}

// searchCtx returns the context the background search tasks run under.
// Before Run is called this is context.Background().
func (a *App) searchCtx() context.Context {
	a.runCtxMu.RLock()
	defer a.runCtxMu.RUnlock()
	return a.runCtx
}

// expireEntry transitions the entry to idle at the matchmaking timeout.
// Not finding an opponent is a notification to the player, not an error.
func (a *App) expireEntry(ctx context.Context, playerID uuid.UUID) {
	entry, err := a.repo.ExpireEntry(ctx, playerID)
	if err != nil {
		if !errors.Is(err, ErrNoActiveEntry) {
			log.Error().Err(err).Str("player_id", playerID.String()).Msg("failed to expire queue entry")
		}
		return
	}
	log.Info().
		Str("player_id", playerID.String()).
		Dur("waited", a.clock.Now().Sub(entry.EnqueuedAt)).
		Msg("matchmaking timed out, entry back to idle")
}

// replaceTimer atomically replaces a timer for a player, properly
// cancelling any existing timer.
func (a *App) replaceTimer(playerID uuid.UUID, newTimer clockwork.Timer) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()

	if existing, exists := a.activeTimers[playerID]; exists {
		stopAndDrainTimer(existing)
	}
	a.activeTimers[playerID] = newTimer
}

func (a *App) cancelTimer(playerID uuid.UUID) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()

	if timer, exists := a.activeTimers[playerID]; exists {
		stopAndDrainTimer(timer)
		delete(a.activeTimers, playerID)
	}
}

func (a *App) removeTimer(playerID uuid.UUID) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()
	delete(a.activeTimers, playerID)
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
