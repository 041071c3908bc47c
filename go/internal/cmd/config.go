package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizclash/go/internal/duel/queue"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
)

// Config carries the game tunables. Durations are yaml strings in
// time.ParseDuration form ("10s", "1500ms"); zero or missing fields keep
// their package defaults.
type Config struct {
	Matchmaking struct {
		RadiusStart    int    `yaml:"radius_start"`
		RadiusStep     int    `yaml:"radius_step"`
		RadiusInterval string `yaml:"radius_interval"`
		RadiusMax      int    `yaml:"radius_max"`
		Timeout        string `yaml:"timeout"`
		PollInterval   string `yaml:"poll_interval"`
	} `yaml:"matchmaking"`
	Game struct {
		BuzzerDelayMin string `yaml:"buzzer_delay_min"`
		BuzzerDelayMax string `yaml:"buzzer_delay_max"`
		BuzzWindow     string `yaml:"buzz_window"`
		AnswerWindow   string `yaml:"answer_window"`
	} `yaml:"game"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func queueConfig(cfg *Config) queue.Config {
	qc := queue.DefaultConfig()
	if cfg == nil {
		return qc
	}
	if cfg.Matchmaking.RadiusStart > 0 {
		qc.RadiusStart = cfg.Matchmaking.RadiusStart
	}
	if cfg.Matchmaking.RadiusStep > 0 {
		qc.RadiusStep = cfg.Matchmaking.RadiusStep
	}
	if cfg.Matchmaking.RadiusMax > 0 {
		qc.RadiusMax = cfg.Matchmaking.RadiusMax
	}
	applyDuration(&qc.RadiusInterval, cfg.Matchmaking.RadiusInterval)
	applyDuration(&qc.Timeout, cfg.Matchmaking.Timeout)
	applyDuration(&qc.PollInterval, cfg.Matchmaking.PollInterval)
	return qc
}

func sessionConfig(cfg *Config) session.Config {
	sc := session.DefaultConfig()
	if cfg == nil {
		return sc
	}
	applyDuration(&sc.BuzzerDelayMin, cfg.Game.BuzzerDelayMin)
	applyDuration(&sc.BuzzerDelayMax, cfg.Game.BuzzerDelayMax)
	applyDuration(&sc.BuzzWindow, cfg.Game.BuzzWindow)
	applyDuration(&sc.AnswerWindow, cfg.Game.AnswerWindow)
	return sc
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
