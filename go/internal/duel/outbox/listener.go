package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ListenerConfig configures the Postgres LISTEN/NOTIFY wake-up path. A
// trigger on duel_outbox issues NOTIFY on every insert; the listener
// forwards that to the worker so events leave the table within
// milliseconds instead of a poll interval.
type ListenerConfig struct {
	DatabaseURL   string
	NotifyChannel string
	PingInterval  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:   "",
		NotifyChannel: "duel_outbox_events",
		PingInterval:  90 * time.Second,
	}
}

// Listener bridges Postgres NOTIFY to Worker.Wake.
type Listener struct {
	listener *pq.Listener
	worker   *Worker
	cfg      ListenerConfig
}

func NewListener(worker *Worker, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for outbox notifications")

	return &Listener{
		listener: l,
		worker:   worker,
		cfg:      cfg,
	}, nil
}

// Start blocks until ctx is cancelled, waking the worker on every
// notification. Periodic pings keep the connection honest.
func (l *Listener) Start(ctx context.Context) error {
	defer l.listener.Close()

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-l.listener.Notify:
			// n is nil when the connection was re-established; drain
			// anyway in case notifications were missed.
			if n != nil {
				log.Debug().Str("channel", n.Channel).Msg("outbox notification")
			}
			l.worker.Wake()
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("outbox listener ping failed")
			}
		}
	}
}
