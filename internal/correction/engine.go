// Package correction mutates historical hands within a bounded time window
// and propagates the change forward through every later hand's cached
// snapshot. After any successful operation, replaying the full ledger from
// scratch equals the last hand's cached scores_after.
package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/gamelock"
	"github.com/kanpai-games/league-ledger/internal/scoring"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// DefaultWindow is how long after recording a hand stays editable.
const DefaultWindow = 5 * time.Minute

// Store is the slice of the event ledger the correction engine needs.
// *ledger.DB satisfies it; tests use an in-memory fake.
type Store interface {
	GetHand(ctx context.Context, gameID, handID uuid.UUID) (*models.Hand, error)
	ListHandsAfter(ctx context.Context, gameID uuid.UUID, afterSeq int) ([]models.Hand, error)
	ListEventsForHand(ctx context.Context, gameID uuid.UUID, handSeq int) ([]models.HandEvent, error)
	PreviousSnapshot(ctx context.Context, gameID uuid.UUID, handSeq int) (models.Scores, error)
	ReplaceHandEvents(ctx context.Context, gameID uuid.UUID, handSeq int, events []models.HandEvent, scoresAfter models.Scores) error
	UpdateScoresAfter(ctx context.Context, gameID uuid.UUID, handSeq int, scores models.Scores) error
	DeleteHand(ctx context.Context, gameID uuid.UUID, handSeq int) error
}

// Config configures the engine.
type Config struct {
	Store  Store
	Logger *zap.Logger
	Window time.Duration      // 0 means DefaultWindow
	Clock  func() time.Time   // nil means time.Now
	Locks  *gamelock.Registry // shared with the reconciliation engine
}

// Engine applies point-in-time corrections to the ledger.
type Engine struct {
	store  Store
	logger *zap.Logger
	window time.Duration
	now    func() time.Time
	locks  *gamelock.Registry
}

// New creates a correction engine.
func New(cfg Config) *Engine {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := cfg.Locks
	if locks == nil {
		locks = gamelock.New()
	}
	return &Engine{
		store:  cfg.Store,
		logger: logger.With(zap.String("component", "correction")),
		window: window,
		now:    now,
		locks:  locks,
	}
}

// CanEdit reports whether a hand is still inside its correction window.
// An explicit override (admin tooling) always passes.
func (e *Engine) CanEdit(hand *models.Hand, override bool) error {
	if override {
		return nil
	}
	if e.now().Sub(hand.CreatedAt) <= e.window {
		return nil
	}
	return models.ErrWindowExpired
}

// EditHand replaces a hand's events and recomputes every later hand's
// cached snapshot. All validation happens before any write. Returns the
// hand's new scores_after.
func (e *Engine) EditHand(ctx context.Context, gameID, handID uuid.UUID, newEvents []models.HandEvent, override bool) (models.Scores, error) {
	unlock := e.locks.Acquire(gameID)
	defer unlock()

	hand, err := e.store.GetHand(ctx, gameID, handID)
	if err != nil {
		return nil, err
	}

	if err := e.CanEdit(hand, override); err != nil {
		return nil, err
	}

	if err := models.ValidateZeroSum(newEvents); err != nil {
		return nil, err
	}

	baseline, err := e.baselineFor(ctx, gameID, hand.HandSeq)
	if err != nil {
		return nil, err
	}

	scoresAfter := scoring.ApplyEvents(baseline, newEvents)

	if err := e.store.ReplaceHandEvents(ctx, gameID, hand.HandSeq, newEvents, scoresAfter); err != nil {
		return nil, fmt.Errorf("replace events: %w", err)
	}

	if err := e.recomputeForward(ctx, gameID, hand.HandSeq, scoresAfter); err != nil {
		return nil, err
	}

	e.logger.Info("hand edited",
		zap.String("game_id", gameID.String()),
		zap.Int("hand_seq", hand.HandSeq),
		zap.Int("events", len(newEvents)),
		zap.Bool("override", override))

	return scoresAfter, nil
}

// DeleteHand removes a hand entirely (its events cascade) and recomputes
// every later hand's snapshot from the hand before the deleted one.
func (e *Engine) DeleteHand(ctx context.Context, gameID, handID uuid.UUID, override bool) error {
	unlock := e.locks.Acquire(gameID)
	defer unlock()

	hand, err := e.store.GetHand(ctx, gameID, handID)
	if err != nil {
		return err
	}

	if err := e.CanEdit(hand, override); err != nil {
		return err
	}

	if err := e.store.DeleteHand(ctx, gameID, hand.HandSeq); err != nil {
		return fmt.Errorf("delete hand: %w", err)
	}

	baseline, err := e.baselineFor(ctx, gameID, hand.HandSeq)
	if err != nil {
		return err
	}

	if err := e.recomputeForward(ctx, gameID, hand.HandSeq-1, baseline); err != nil {
		return err
	}

	e.logger.Info("hand deleted",
		zap.String("game_id", gameID.String()),
		zap.Int("hand_seq", hand.HandSeq),
		zap.Bool("override", override))

	return nil
}

// RecomputeForward re-derives the cached snapshots of every hand with
// hand_seq > afterSeq. It only re-folds already valid events, so it is
// idempotent: callers re-trigger it to repair stale snapshots after a
// mid-pass storage fault.
func (e *Engine) RecomputeForward(ctx context.Context, gameID uuid.UUID, afterSeq int) error {
	unlock := e.locks.Acquire(gameID)
	defer unlock()

	baseline, err := e.baselineFor(ctx, gameID, afterSeq+1)
	if err != nil {
		return err
	}
	return e.recomputeForward(ctx, gameID, afterSeq, baseline)
}

// baselineFor returns the snapshot to fold hand handSeq onto: the previous
// hand's scores_after, or the starting scores for the first hand.
func (e *Engine) baselineFor(ctx context.Context, gameID uuid.UUID, handSeq int) (models.Scores, error) {
	snap, err := e.store.PreviousSnapshot(ctx, gameID, handSeq)
	if err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}
	if snap == nil {
		return scoring.StartingScores(), nil
	}
	return snap, nil
}

// recomputeForward is the linear forward pass: each later hand's existing
// events are folded onto the running score and its cached snapshot is
// overwritten. No event data changes for untouched hands.
func (e *Engine) recomputeForward(ctx context.Context, gameID uuid.UUID, afterSeq int, running models.Scores) error {
	hands, err := e.store.ListHandsAfter(ctx, gameID, afterSeq)
	if err != nil {
		return fmt.Errorf("list hands after %d: %w", afterSeq, err)
	}

	for _, hand := range hands {
		events, err := e.store.ListEventsForHand(ctx, gameID, hand.HandSeq)
		if err != nil {
			return fmt.Errorf("list events for hand %d: %w", hand.HandSeq, err)
		}

		running = scoring.ApplyEvents(running, events)

		if err := e.store.UpdateScoresAfter(ctx, gameID, hand.HandSeq, running); err != nil {
			return fmt.Errorf("update snapshot for hand %d: %w", hand.HandSeq, err)
		}
	}

	if len(hands) > 0 {
		e.logger.Debug("forward recompute complete",
			zap.String("game_id", gameID.String()),
			zap.Int("after_seq", afterSeq),
			zap.Int("hands", len(hands)))
	}

	return nil
}
