package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/backfill"
	"github.com/kanpai-games/league-ledger/internal/config"
	"github.com/kanpai-games/league-ledger/internal/correction"
	"github.com/kanpai-games/league-ledger/internal/db"
	"github.com/kanpai-games/league-ledger/internal/ledger"
)

func main() {
	// Parse flags
	dryRun := flag.Bool("dry-run", false, "Only report stale snapshots, don't repair")
	batchSize := flag.Int("batch", 0, "Games per batch (default: 100)")
	concurrency := flag.Int("concurrency", 0, "Number of concurrent workers (default: 4)")
	statsOnly := flag.Bool("stats", false, "Only show snapshot health statistics")
	gameFlag := flag.String("game", "", "Specific game ID to verify (default: all games)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load base configuration
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

	// Connect to PostgreSQL
	pool, err := db.Connect(ctx, cfg.PostgresURL, cfg.PGMaxConns)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := ledger.New(ctx, pool, zapLogger)
	if err != nil {
		slog.Error("failed to initialize ledger", "err", err)
		os.Exit(1)
	}

	// Repairs go through the correction engine so they hold each game's
	// lock and reuse the same forward recompute the API uses.
	corr := correction.New(correction.Config{
		Store:  store,
		Logger: zapLogger,
		Window: cfg.CorrectionWindow,
	})

	// Build backfill config
	backfillCfg := backfill.LoadConfig()

	// Override with flags if provided
	if *dryRun {
		backfillCfg.DryRun = true
	}
	if *batchSize > 0 {
		backfillCfg.BatchSize = *batchSize
	}
	if *concurrency > 0 {
		backfillCfg.Concurrency = *concurrency
	}

	bf := backfill.New(store, corr, backfillCfg)

	// Stats only mode
	if *statsOnly {
		stats, err := bf.CheckHealth(ctx)
		if err != nil {
			slog.Error("failed to check health", "err", err)
			os.Exit(1)
		}

		fmt.Printf("Snapshot Health:\n")
		fmt.Printf("  Total Games: %d\n", stats.TotalGames)
		fmt.Printf("  Total Hands: %d\n", stats.TotalHands)
		fmt.Printf("  Stale Games: %d\n", stats.StaleGames)
		fmt.Printf("  Stale Hands: %d\n", stats.StaleHands)
		if stats.StaleHands > 0 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	var games []uuid.UUID
	if *gameFlag != "" {
		id, err := uuid.Parse(*gameFlag)
		if err != nil {
			slog.Error("invalid game id", "game", *gameFlag, "err", err)
			os.Exit(1)
		}
		games = []uuid.UUID{id}
	}

	result, err := bf.Run(ctx, games)
	if err != nil && ctx.Err() == nil {
		slog.Error("backfill failed", "err", err)
		os.Exit(1)
	}

	// Print summary
	fmt.Printf("\nBackfill Summary:\n")
	fmt.Printf("  Total Games:     %d\n", result.TotalGames)
	fmt.Printf("  Total Processed: %d\n", result.TotalProcessed)
	fmt.Printf("  Stale Games:     %d\n", result.StaleGames)
	fmt.Printf("  Stale Hands:     %d\n", result.StaleHands)
	fmt.Printf("  Total Repaired:  %d\n", result.TotalRepaired)
	fmt.Printf("  Total Failed:    %d\n", result.TotalFailed)
	fmt.Printf("  Duration:        %s\n", result.Duration)

	if result.TotalFailed > 0 {
		fmt.Printf("\n  Failed games (%d):\n", len(result.Errors))
		for i, err := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %v\n", err)
		}
		os.Exit(1)
	}

	slog.Info("backfill complete")
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
