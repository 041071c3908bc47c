package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclash/go/internal/duel/gateway"
	"github.com/mcdev12/quizclash/go/internal/duel/outbox"
	"github.com/mcdev12/quizclash/go/internal/duel/queue"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/players"
)

type Services struct {
	Queue    *queue.App
	Sessions *session.App
	Players  *players.App
	Gateway  *gateway.Service
}

func setupServices(database *sql.DB, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer -> Repository layer -> App layer -> Gateway layer
	clock := clockwork.NewRealClock()
	outboxRepo := outbox.NewRepository(database)

	// Matchmaking queue
	queueRepo := queue.NewRepository(database, outboxRepo)
	queueApp := queue.NewApp(queueRepo, queueConfig(cfg), clock)

	// Duel sessions
	sessionRepo := session.NewRepository(database, outboxRepo)
	sessionApp := session.NewApp(sessionRepo, sessionConfig(cfg), clock)

	// Players and match history
	playersRepo := players.NewRepository(database)
	playersApp := players.NewApp(database, playersRepo, outboxRepo)

	// Gateway: REST + websocket push
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = getEnv("NATS_URL", gatewayConfig.JetStreamConfig.URL)
	gatewayService, err := gateway.NewService(gatewayConfig, queueApp, sessionApp, playersApp)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}

	return &Services{
		Queue:    queueApp,
		Sessions: sessionApp,
		Players:  playersApp,
		Gateway:  gatewayService,
	}, nil
}
