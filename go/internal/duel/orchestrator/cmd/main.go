package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/clients/questionbank"
	"github.com/mcdev12/quizclash/go/internal/dbconfig"
	"github.com/mcdev12/quizclash/go/internal/duel/orchestrator"
	"github.com/mcdev12/quizclash/go/internal/duel/outbox"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/players"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Get configuration
	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	bankURL := getEnv("QUESTION_BANK_URL", questionbank.DefaultBaseURL)
	bankAPIKey := os.Getenv("QUESTION_BANK_API_KEY")

	// Database configuration
	dbCfg := dbconfig.NewConfigFromEnv()

	// Connect to database
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", natsURL).
		Str("question_bank_url", bankURL).
		Msg("starting duel orchestrator")

	// Session app drives the question cycle transitions
	cfg := gameConfig()
	outboxRepo := outbox.NewRepository(db)
	sessionRepo := session.NewRepository(db, outboxRepo)
	sessionApp := session.NewApp(sessionRepo, cfg, clockwork.NewRealClock())

	// Players app settles ratings when sessions complete
	playersRepo := players.NewRepository(db)
	playersApp := players.NewApp(db, playersRepo, outboxRepo)

	// Question bank deals the boards
	bankClient := questionbank.NewClient(bankURL, bankAPIKey)

	// Create orchestrator
	orch := orchestrator.New(sessionApp, playersApp, bankClient, cfg)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Connect(ctx, natsURL); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer orch.Close()

	// Start consuming events
	go func() {
		log.Info().Msg("starting orchestrator event loop")
		if err := orch.Run(ctx); err != nil {
			log.Error().Err(err).Msg("orchestrator event loop failed")
		}
	}()

	// Add health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start HTTP server for health checks
	server := &http.Server{
		Addr:         ":8082", // Different port from main service
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server shutdown failed")
	}

	// Cancel orchestrator context
	cancel()

	// Give orchestrator time to clean up
	time.Sleep(2 * time.Second)

	log.Info().Msg("duel orchestrator shutdown complete")
}

// gameConfig builds the question-cycle timing from env overrides on top of
// the defaults. The orchestrator and API service must agree on these; both
// read the same variables.
func gameConfig() session.Config {
	cfg := session.DefaultConfig()
	applyDurationEnv(&cfg.BuzzerDelayMin, "BUZZER_DELAY_MIN")
	applyDurationEnv(&cfg.BuzzerDelayMax, "BUZZER_DELAY_MAX")
	applyDurationEnv(&cfg.BuzzWindow, "BUZZ_WINDOW")
	applyDurationEnv(&cfg.AnswerWindow, "ANSWER_WINDOW")
	return cfg
}

func applyDurationEnv(dst *time.Duration, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("ignoring invalid duration")
		return
	}
	*dst = d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
