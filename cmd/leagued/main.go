package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kanpai-games/league-ledger/internal/api"
	"github.com/kanpai-games/league-ledger/internal/api/handler"
	"github.com/kanpai-games/league-ledger/internal/config"
	"github.com/kanpai-games/league-ledger/internal/correction"
	"github.com/kanpai-games/league-ledger/internal/db"
	"github.com/kanpai-games/league-ledger/internal/gamelock"
	"github.com/kanpai-games/league-ledger/internal/ledger"
	"github.com/kanpai-games/league-ledger/internal/live"
	"github.com/kanpai-games/league-ledger/internal/publisher"
	"github.com/kanpai-games/league-ledger/internal/rating"
	"github.com/kanpai-games/league-ledger/internal/reconcile"
	"github.com/kanpai-games/league-ledger/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		slog.Error("failed to create logger", "err", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	slog.Info("starting league-ledger",
		"http_addr", cfg.HTTPAddr,
		"correction_window", cfg.CorrectionWindow,
	)

	// Connect to PostgreSQL
	pool, err := db.Connect(ctx, cfg.PostgresURL, cfg.PGMaxConns)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to parse redis url", "err", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Create ledger store (ensures tables exist)
	store, err := ledger.New(ctx, pool, zapLogger)
	if err != nil {
		slog.Error("failed to initialize ledger", "err", err)
		os.Exit(1)
	}

	// Create publisher
	pub, err := publisher.New(redisClient, cfg.FinishedGameTopic)
	if err != nil {
		slog.Error("failed to create publisher", "err", err)
		os.Exit(1)
	}
	defer pub.Close()

	// Shared per-game mutation lock
	locks := gamelock.New()

	// Create engines
	corr := correction.New(correction.Config{
		Store:  store,
		Logger: zapLogger,
		Window: cfg.CorrectionWindow,
		Locks:  locks,
	})
	rec := reconcile.New(reconcile.Config{
		Store:  store,
		Logger: zapLogger,
		Locks:  locks,
	})

	// Create rating worker
	wrk, err := worker.New(worker.Config{
		RedisClient:   redisClient,
		Store:         store,
		Computer:      rating.PlacementDeltas{},
		Topic:         cfg.FinishedGameTopic,
		ConsumerGroup: cfg.ConsumerGroup,
		Concurrency:   cfg.WorkerConcurrency,
		DefaultRating: cfg.DefaultRating,
	})
	if err != nil {
		slog.Error("failed to create worker", "err", err)
		os.Exit(1)
	}
	defer wrk.Close()

	// Create API server
	hub := live.NewHub(zapLogger)
	h := &handler.Handler{
		Ledger:     store,
		Correction: corr,
		Reconcile:  rec,
		Publisher:  pub,
		Hub:        hub,
		Locks:      locks,
		Logger:     zapLogger,
		AdminToken: cfg.AdminToken,
	}
	srv, err := api.NewServer(h, zapLogger, cfg.HTTPAddr)
	if err != nil {
		slog.Error("failed to create api server", "err", err)
		os.Exit(1)
	}

	// Run all components
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	g.Go(func() error {
		slog.Info("starting rating worker")
		return wrk.Run(ctx)
	})

	// Optional: periodic unreconciled-game health check
	if cfg.ReconcileCheckInterval > 0 {
		g.Go(func() error {
			return runPeriodicHealthCheck(ctx, store, cfg.ReconcileCheckInterval)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("league-ledger error", "err", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// runPeriodicHealthCheck surfaces finished games still holding
// unattributed events.
func runPeriodicHealthCheck(ctx context.Context, store *ledger.DB, interval time.Duration) error {
	slog.Info("starting periodic reconciliation health check", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := reconcile.CheckHealth(ctx, store)
			if err != nil {
				slog.Warn("reconciliation health check failed", "err", err)
				continue
			}

			if stats.Unreconciled > 0 {
				slog.Warn("unreconciled finished games detected",
					"count", stats.Unreconciled,
				)
			} else {
				slog.Debug("reconciliation health check passed")
			}
		}
	}
}
