package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/players"
)

const (
	consumerName           = "duel-orchestrator"
	natsMaxReconnects      = 10
	natsReconnectWait      = 2 * time.Second
	consumerMaxDeliver     = 5
	consumerAckWait        = 30 * time.Second
	consumerMaxAckPending  = 256
	eventChannelBufferSize = 256

	settleAttempts = 5
	settleBackoff  = 2 * time.Second
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// SessionApp is what the orchestrator drives on the session side: board
// setup after a match and the two timeout scorers.
type SessionApp interface {
	StartSession(ctx context.Context, sessionID uuid.UUID, questions []models.GameQuestion) (*models.GameSession, error)
	OpenBuzzer(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error)
	ScoreTimeout(ctx context.Context, sessionID, questionID uuid.UUID) error
}

// MatchSettler applies ratings for a completed session.
type MatchSettler interface {
	SettleMatch(ctx context.Context, m players.CompletedMatch) error
}

// BoardProvider assembles the 25-question board for a new session.
type BoardProvider interface {
	BuildBoard(ctx context.Context, sessionID uuid.UUID) ([]models.GameQuestion, error)
}

type taskKind int

const (
	taskOpenBuzzer taskKind = iota
	taskBuzzTimeout
	taskAnswerTimeout
)

func (k taskKind) String() string {
	switch k {
	case taskOpenBuzzer:
		return "open_buzzer"
	case taskBuzzTimeout:
		return "buzz_timeout"
	case taskAnswerTimeout:
		return "answer_timeout"
	}
	return "unknown"
}

// timerTask is one unit of deferred work. Timers are keyed by session, so
// at most one task is pending per duel at a time; the question cycle is
// strictly sequential.
type timerTask struct {
	sessionID  uuid.UUID
	questionID uuid.UUID
	kind       taskKind
}

// Orchestrator consumes the duel event stream and drives everything the
// players do not: opening buzzers after the reveal delay, scoring
// timeouts, building boards, and settling ratings. Recovery happens
// through JetStream replay; every action it takes is idempotent on the
// session side.
type Orchestrator struct {
	sessions SessionApp
	settler  MatchSettler
	boards   BoardProvider
	cfg      session.Config
	clock    Clock

	rng   *rand.Rand
	rngMu sync.Mutex

	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer

	instanceID string

	numWorkers int
	workCh     chan timerTask

	activeTimers   map[uuid.UUID]clockwork.Timer
	activeTimersMu sync.Mutex
}

// New creates a duel orchestrator. Call Connect before Run.
func New(sessions SessionApp, settler MatchSettler, boards BoardProvider, cfg session.Config) *Orchestrator {
	numWorkers := 10
	return &Orchestrator{
		sessions:   sessions,
		settler:    settler,
		boards:     boards,
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		instanceID: uuid.New().String()[:8],
		numWorkers: numWorkers,
		workCh:     make(chan timerTask, numWorkers*2),

		activeTimers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// WithClock swaps the clock. Tests install a fake before Run.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.clock = clock
	return o
}

// revealDelay draws the randomized pause between reveal and buzzer open.
// The jitter keeps players from timing the open instead of reading the
// question.
func (o *Orchestrator) revealDelay() time.Duration {
	spread := o.cfg.BuzzerDelayMax - o.cfg.BuzzerDelayMin
	if spread <= 0 {
		return o.cfg.BuzzerDelayMin
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.cfg.BuzzerDelayMin + time.Duration(o.rng.Int63n(int64(spread)+1))
}
