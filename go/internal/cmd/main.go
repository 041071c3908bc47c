package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Game tunables are optional; defaults cover a missing file.
	var cfg *Config
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	if loaded, err := loadConfig(configPath); err != nil {
		log.Printf("Warning: using default game config: %v", err)
	} else {
		cfg = loaded
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}
	defer database.Close()

	services, err := setupServices(database, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}

	server := setupServer(services)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Matchmaking loop: expands search radii and pairs waiting players.
	go func() {
		if err := services.Queue.Run(ctx); err != nil {
			log.Printf("Matchmaking loop stopped: %v", err)
		}
	}()

	// Gateway: websocket connection manager and JetStream fan-out.
	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Printf("Gateway service stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("Duel API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown failed: %v", err)
	}

	cancel()
	if err := services.Gateway.Stop(); err != nil {
		log.Printf("Gateway shutdown failed: %v", err)
	}

	log.Printf("Shutdown complete")
}
