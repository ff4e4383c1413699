// Package backfill walks every game in the ledger, verifies that each
// hand's cached snapshot matches a from-scratch replay of its events, and
// repairs divergent games with a forward recompute. Snapshots go stale when
// a recompute pass is interrupted mid-write; the event stream itself stays
// authoritative, so the repair is always a re-fold of existing events.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result contains the results of a backfill operation.
type Result struct {
	TotalGames     uint64
	TotalProcessed uint64
	StaleGames     uint64
	StaleHands     uint64
	TotalRepaired  uint64
	TotalFailed    uint64
	Duration       time.Duration
	Errors         []error
}

// Backfiller verifies and repairs cached score snapshots.
type Backfiller struct {
	store      Store
	recomputer Recomputer
	config     *Config
}

// New creates a new Backfiller.
func New(store Store, recomputer Recomputer, cfg *Config) *Backfiller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Backfiller{
		store:      store,
		recomputer: recomputer,
		config:     cfg,
	}
}

// Run executes the backfill over every game, or over only the given games
// when gameIDs is non-empty.
func (b *Backfiller) Run(ctx context.Context, gameIDs []uuid.UUID) (*Result, error) {
	start := time.Now()
	result := &Result{}

	ids := gameIDs
	if len(ids) == 0 {
		var err error
		ids, err = b.store.ListGameIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list game ids: %w", err)
		}
	}

	result.TotalGames = uint64(len(ids))

	slog.Info("starting snapshot backfill",
		"games", len(ids),
		"batch_size", b.config.BatchSize,
		"concurrency", b.config.Concurrency,
		"dry_run", b.config.DryRun,
	)

	if len(ids) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	var errorsMu sync.Mutex
	var processed, staleGames, staleHands, repaired, failed atomic.Uint64

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go b.reportProgress(progressCtx, result.TotalGames, &processed, &repaired, &failed)

	for batchStart := 0; batchStart < len(ids); batchStart += b.config.BatchSize {
		select {
		case <-ctx.Done():
			result.TotalProcessed = processed.Load()
			result.StaleGames = staleGames.Load()
			result.StaleHands = staleHands.Load()
			result.TotalRepaired = repaired.Load()
			result.TotalFailed = failed.Load()
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		batchEnd := batchStart + b.config.BatchSize
		if batchEnd > len(ids) {
			batchEnd = len(ids)
		}
		batch := ids[batchStart:batchEnd]

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(b.config.Concurrency)

		for _, gameID := range batch {
			gameID := gameID
			g.Go(func() error {
				processed.Add(1)

				stats, err := Verify(gCtx, b.store, gameID)
				if err != nil {
					failed.Add(1)
					errorsMu.Lock()
					result.Errors = append(result.Errors, fmt.Errorf("game %s: %w", gameID, err))
					errorsMu.Unlock()
					slog.Error("failed to verify game", "game_id", gameID, "err", err)
					// Continue with other games, don't fail the entire run
					return nil
				}

				if stats.StaleHands == 0 {
					return nil
				}

				staleGames.Add(1)
				staleHands.Add(uint64(stats.StaleHands))

				if b.config.DryRun {
					slog.Warn("stale snapshots found",
						"game_id", gameID,
						"stale_hands", stats.StaleHands,
						"first_stale", stats.FirstStale,
					)
					return nil
				}

				if err := b.recomputer.RecomputeForward(gCtx, gameID, stats.FirstStale-1); err != nil {
					failed.Add(1)
					errorsMu.Lock()
					result.Errors = append(result.Errors, fmt.Errorf("game %s: %w", gameID, err))
					errorsMu.Unlock()
					slog.Error("failed to repair game", "game_id", gameID, "err", err)
					return nil
				}

				repaired.Add(uint64(stats.StaleHands))
				slog.Info("snapshots repaired",
					"game_id", gameID,
					"stale_hands", stats.StaleHands,
					"first_stale", stats.FirstStale,
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			// Context cancelled
			break
		}
	}

	result.TotalProcessed = processed.Load()
	result.StaleGames = staleGames.Load()
	result.StaleHands = staleHands.Load()
	result.TotalRepaired = repaired.Load()
	result.TotalFailed = failed.Load()
	result.Duration = time.Since(start)

	slog.Info("backfill complete",
		"total_games", result.TotalGames,
		"stale_games", result.StaleGames,
		"stale_hands", result.StaleHands,
		"total_repaired", result.TotalRepaired,
		"total_failed", result.TotalFailed,
		"duration", result.Duration,
	)

	return result, nil
}

// reportProgress logs progress at regular intervals.
func (b *Backfiller) reportProgress(ctx context.Context, total uint64, processed, repaired, failed *atomic.Uint64) {
	ticker := time.NewTicker(b.config.ProgressInterval)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := processed.Load()
			r := repaired.Load()
			f := failed.Load()

			elapsed := time.Since(startTime)
			rate := float64(p) / elapsed.Seconds()

			var eta time.Duration
			if rate > 0 && p < total {
				remaining := total - p
				eta = time.Duration(float64(remaining)/rate) * time.Second
			}

			progress := float64(p) / float64(total) * 100

			slog.Info("backfill progress",
				"processed", p,
				"total", total,
				"progress_pct", fmt.Sprintf("%.1f%%", progress),
				"repaired", r,
				"failed", f,
				"rate_per_sec", fmt.Sprintf("%.1f", rate),
				"eta", eta.Round(time.Second),
			)
		}
	}
}

// CheckHealth verifies every game without repairing and returns aggregate
// stats.
func (b *Backfiller) CheckHealth(ctx context.Context) (*Stats, error) {
	ids, err := b.store.ListGameIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list game ids: %w", err)
	}

	stats := &Stats{TotalGames: len(ids)}
	for _, gameID := range ids {
		gs, err := Verify(ctx, b.store, gameID)
		if err != nil {
			return nil, fmt.Errorf("verify game %s: %w", gameID, err)
		}
		stats.TotalHands += gs.TotalHands
		stats.StaleHands += gs.StaleHands
		if gs.StaleHands > 0 {
			stats.StaleGames++
		}
	}

	return stats, nil
}
