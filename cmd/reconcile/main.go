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

	"github.com/kanpai-games/league-ledger/internal/config"
	"github.com/kanpai-games/league-ledger/internal/db"
	"github.com/kanpai-games/league-ledger/internal/ledger"
	"github.com/kanpai-games/league-ledger/internal/reconcile"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

func main() {
	// Parse flags
	gameFlag := flag.String("game", "", "Specific game ID to reconcile (default: all unreconciled finished games)")
	statsOnly := flag.Bool("stats", false, "Only show unreconciled game statistics")
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

	// Stats only mode
	if *statsOnly {
		stats, err := reconcile.CheckHealth(ctx, store)
		if err != nil {
			slog.Error("failed to check health", "err", err)
			os.Exit(1)
		}

		fmt.Printf("Reconciliation Statistics:\n")
		fmt.Printf("  Unreconciled Finished Games: %d\n", stats.Unreconciled)
		for _, id := range stats.GameIDs {
			fmt.Printf("    - %s\n", id)
		}
		os.Exit(0)
	}

	// Determine which games to reconcile
	var games []uuid.UUID
	if *gameFlag != "" {
		id, err := uuid.Parse(*gameFlag)
		if err != nil {
			slog.Error("invalid game id", "game", *gameFlag, "err", err)
			os.Exit(1)
		}
		games = []uuid.UUID{id}
	} else {
		games, err = store.ListUnreconciledFinished(ctx)
		if err != nil {
			slog.Error("failed to list unreconciled games", "err", err)
			os.Exit(1)
		}
	}

	if len(games) == 0 {
		slog.Info("no games to reconcile")
		return
	}

	slog.Info("reconcile starting", "games", len(games))

	engine := reconcile.New(reconcile.Config{
		Store:  store,
		Logger: zapLogger,
	})

	var totalHigh, totalLow, failed int
	for _, id := range games {
		finalScores, err := loadFinalScores(ctx, store, id)
		if err != nil {
			slog.Error("failed to load final scores", "game_id", id, "err", err)
			failed++
			continue
		}

		summary, err := engine.Reconcile(ctx, id, finalScores)
		if err != nil {
			slog.Error("reconcile failed", "game_id", id, "err", err)
			failed++
			continue
		}

		fmt.Printf("\nGame %s:\n", id)
		fmt.Printf("  High Confidence: %d\n", summary.HighConfidence)
		fmt.Printf("  Low Confidence:  %d\n", summary.LowConfidence)
		for _, inf := range summary.InferredHands {
			seat := "?"
			if inf.Seat != nil {
				seat = inf.Seat.String()
			}
			fmt.Printf("    hand %d: winner=%s confidence=%.2f committed=%v\n",
				inf.HandSeq, seat, inf.Confidence, inf.Committed)
		}

		totalHigh += summary.HighConfidence
		totalLow += summary.LowConfidence
	}

	fmt.Printf("\nOverall Totals:\n")
	fmt.Printf("  Games Processed:  %d\n", len(games)-failed)
	fmt.Printf("  Games Failed:     %d\n", failed)
	fmt.Printf("  High Confidence:  %d\n", totalHigh)
	fmt.Printf("  Low Confidence:   %d\n", totalLow)

	if failed > 0 {
		os.Exit(1)
	}

	slog.Info("reconcile complete")
}

// loadFinalScores builds the authoritative final-score vector from the
// game's seat records.
func loadFinalScores(ctx context.Context, store *ledger.DB, gameID uuid.UUID) (models.Scores, error) {
	seats, err := store.GetSeats(ctx, gameID)
	if err != nil {
		return nil, err
	}

	scores := make(models.Scores, 4)
	for _, gs := range seats {
		if gs.FinalScore == nil {
			return nil, fmt.Errorf("seat %s has no final score recorded", gs.Seat)
		}
		scores[gs.Seat] = *gs.FinalScore
	}

	return scores, nil
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
