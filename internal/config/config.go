package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the league ledger service.
type Config struct {

	// PostgreSQL
	PostgresURL string
	PGMaxConns  int32

	// Redis
	RedisURL          string
	FinishedGameTopic string
	ConsumerGroup     string

	// Rating worker
	WorkerConcurrency int
	DefaultRating     float64

	// Correction
	CorrectionWindow time.Duration

	// Reconciliation
	ReconcileCheckInterval time.Duration // Periodic unreconciled-game check (0 = disabled)

	// Logging
	LogLevel string

	// HTTP API
	HTTPAddr   string
	AdminToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		PGMaxConns:        10,
		FinishedGameTopic: "finished-games",
		ConsumerGroup:     "rating-workers",
		WorkerConcurrency: 1,
		DefaultRating:     1500,
		CorrectionWindow:  5 * time.Minute,
		LogLevel:          "info",
		HTTPAddr:          ":8080",
	}

	// Required
	cfg.PostgresURL = os.Getenv("POSTGRES_URL")
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	// Optional overrides
	if v := os.Getenv("PG_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PGMaxConns = int32(n)
		}
	}

	if v := os.Getenv("FINISHED_GAME_TOPIC"); v != "" {
		cfg.FinishedGameTopic = v
	}

	if v := os.Getenv("CONSUMER_GROUP"); v != "" {
		cfg.ConsumerGroup = v
	}

	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerConcurrency = n
		}
	}

	if v := os.Getenv("DEFAULT_RATING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultRating = f
		}
	}

	if v := os.Getenv("CORRECTION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CorrectionWindow = d
		}
	}

	if v := os.Getenv("RECONCILE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconcileCheckInterval = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if cfg.AdminToken == "" {
		cfg.AdminToken = "devtoken" // Default token for development
	}

	return cfg, nil
}
