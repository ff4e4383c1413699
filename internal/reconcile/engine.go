// Package reconcile infers missing event attributions from the
// authoritative final-score vector of a finished game. Live recording
// sometimes drops the winner of a hand; the net point movement that the
// incomplete hands must explain (final minus replayed-complete) pins the
// winner down when exactly one seat's missing delta matches.
package reconcile

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/gamelock"
	"github.com/kanpai-games/league-ledger/internal/scoring"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// Matching heuristics. The threshold-gated commit behavior is deliberate:
// only confident inferences become irreversible ledger changes, everything
// else stays incomplete for manual review.
const (
	MatchTolerance  = 100.0
	HighConfidence  = 0.8
	LowConfidence   = 0.2
	CommitThreshold = 0.7
)

// Store is the slice of the event ledger the reconciliation engine needs.
type Store interface {
	ListHands(ctx context.Context, gameID uuid.UUID) ([]models.Hand, error)
	ListEventsForHand(ctx context.Context, gameID uuid.UUID, handSeq int) ([]models.HandEvent, error)
	AttributeEvent(ctx context.Context, gameID uuid.UUID, handSeq, eventIndex int, seat models.Seat, details map[string]any) error
	CompleteHand(ctx context.Context, gameID uuid.UUID, handSeq int, details map[string]any, note string) error
	UpdateScoresAfter(ctx context.Context, gameID uuid.UUID, handSeq int, scores models.Scores) error
}

// Inference is one inferred winner for an unattributed win event.
type Inference struct {
	HandSeq     int          `json:"hand_seq"`
	EventIndex  int          `json:"event_index"`
	Seat        *models.Seat `json:"seat,omitempty"` // nil when no unique match
	Confidence  float64      `json:"confidence"`
	PointsDelta float64      `json:"points_delta"`
	Committed   bool         `json:"committed"`
}

// Summary is the structured result of a reconciliation run.
type Summary struct {
	Reconciled     bool        `json:"reconciled"`
	GameID         uuid.UUID   `json:"game_id"`
	InferredHands  []Inference `json:"inferred_hands"`
	HighConfidence int         `json:"high_confidence"`
	LowConfidence  int         `json:"low_confidence"`
}

// Config configures the engine.
type Config struct {
	Store  Store
	Logger *zap.Logger
	Locks  *gamelock.Registry // shared with the correction engine
}

// Engine reconciles incomplete ledgers against known final scores.
type Engine struct {
	store  Store
	logger *zap.Logger
	locks  *gamelock.Registry
}

// New creates a reconciliation engine.
func New(cfg Config) *Engine {
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
		logger: logger.With(zap.String("component", "reconcile")),
		locks:  locks,
	}
}

// Reconcile partitions a game's hands into complete and incomplete, replays
// the complete ones, and attributes unexplained point movement to the
// incomplete hands' win events. Only inferences above CommitThreshold are
// committed; low-confidence hands are reported, not mutated. A game with no
// incomplete hands is a no-op success.
func (e *Engine) Reconcile(ctx context.Context, gameID uuid.UUID, finalScores models.Scores) (*Summary, error) {
	if err := validateFinalScores(finalScores); err != nil {
		return nil, err
	}

	unlock := e.locks.Acquire(gameID)
	defer unlock()

	hands, err := e.store.ListHands(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}

	var completeEvents []models.HandEvent
	type incompleteHand struct {
		hand   models.Hand
		events []models.HandEvent
	}
	var incomplete []incompleteHand

	for _, hand := range hands {
		events, err := e.store.ListEventsForHand(ctx, gameID, hand.HandSeq)
		if err != nil {
			return nil, fmt.Errorf("list events for hand %d: %w", hand.HandSeq, err)
		}

		if isComplete(hand, events) {
			completeEvents = append(completeEvents, events...)
		} else {
			incomplete = append(incomplete, incompleteHand{hand: hand, events: events})
		}
	}

	summary := &Summary{
		Reconciled:    true,
		GameID:        gameID,
		InferredHands: []Inference{},
	}

	if len(incomplete) == 0 {
		return summary, nil
	}

	current := scoring.Replay(completeEvents).Scores

	missing := make(models.Scores, 4)
	for _, seat := range models.SeatOrder {
		missing[seat] = finalScores[seat] - current[seat]
	}

	committed := 0

	for _, ih := range incomplete {
		handCommitted := true
		inferred := 0

		for _, ev := range ih.events {
			if ev.Attributed() || ev.ActionType != models.ActionWin {
				continue
			}
			inferred++

			inf := inferWinner(ih.hand.HandSeq, ev, missing)
			if inf.Confidence > CommitThreshold && inf.Seat != nil {
				details := map[string]any{
					"reconciled": true,
					"confidence": inf.Confidence,
				}
				if err := e.store.AttributeEvent(ctx, gameID, ih.hand.HandSeq, ev.EventIndex, *inf.Seat, details); err != nil {
					return nil, fmt.Errorf("attribute event (hand %d): %w", ih.hand.HandSeq, err)
				}
				inf.Committed = true
				committed++
			} else {
				handCommitted = false
			}

			summary.InferredHands = append(summary.InferredHands, inf)
			if inf.Confidence > CommitThreshold {
				summary.HighConfidence++
			} else {
				summary.LowConfidence++
			}
		}

		if inferred > 0 && handCommitted {
			note := "winner inferred from final scores during reconciliation"
			details := map[string]any{"reconciled": true}
			if err := e.store.CompleteHand(ctx, gameID, ih.hand.HandSeq, details, note); err != nil {
				return nil, fmt.Errorf("complete hand %d: %w", ih.hand.HandSeq, err)
			}
		}
	}

	if committed > 0 {
		if err := e.refreshSnapshots(ctx, gameID); err != nil {
			return nil, fmt.Errorf("refresh snapshots: %w", err)
		}
	}

	e.logger.Info("reconciliation complete",
		zap.String("game_id", gameID.String()),
		zap.Int("incomplete_hands", len(incomplete)),
		zap.Int("high_confidence", summary.HighConfidence),
		zap.Int("low_confidence", summary.LowConfidence))

	return summary, nil
}

// refreshSnapshots re-folds the full event stream and rewrites every hand's
// cached scores_after, so reads that trust the snapshots see the committed
// attributions. The caller already holds the game lock.
func (e *Engine) refreshSnapshots(ctx context.Context, gameID uuid.UUID) error {
	hands, err := e.store.ListHands(ctx, gameID)
	if err != nil {
		return fmt.Errorf("list hands: %w", err)
	}

	running := scoring.StartingScores()
	for _, hand := range hands {
		events, err := e.store.ListEventsForHand(ctx, gameID, hand.HandSeq)
		if err != nil {
			return fmt.Errorf("list events for hand %d: %w", hand.HandSeq, err)
		}
		running = scoring.ApplyEvents(running, events)
		if err := e.store.UpdateScoresAfter(ctx, gameID, hand.HandSeq, running); err != nil {
			return fmt.Errorf("update scores for hand %d: %w", hand.HandSeq, err)
		}
	}
	return nil
}

// inferWinner searches for the single seat whose missing-point delta falls
// within MatchTolerance of the event's recorded delta. Zero matches or a
// tie between seats stays low confidence: committing an arbitrary pick
// would be an irreversible wrong answer.
func inferWinner(handSeq int, ev models.HandEvent, missing models.Scores) Inference {
	inf := Inference{
		HandSeq:     handSeq,
		EventIndex:  ev.EventIndex,
		Confidence:  LowConfidence,
		PointsDelta: ev.PointsDelta,
	}

	var matches []models.Seat
	for _, seat := range models.SeatOrder {
		if math.Abs(missing[seat]-ev.PointsDelta) <= MatchTolerance {
			matches = append(matches, seat)
		}
	}

	if len(matches) == 1 {
		seat := matches[0]
		inf.Seat = &seat
		inf.Confidence = HighConfidence
	}

	return inf
}

// isComplete reports whether a hand is fully recorded: finalized and with
// every event attributed to a seat.
func isComplete(hand models.Hand, events []models.HandEvent) bool {
	if hand.CompletedAt == nil {
		return false
	}
	for _, e := range events {
		if !e.Attributed() {
			return false
		}
	}
	return true
}

// validateFinalScores fails fast on a missing or malformed final-score
// vector, before any computation.
func validateFinalScores(finalScores models.Scores) error {
	if finalScores == nil {
		return models.Validationf("final scores are required")
	}
	if len(finalScores) != 4 {
		return models.Validationf("final scores need exactly 4 seats, got %d", len(finalScores))
	}
	for seat := range finalScores {
		if !seat.Valid() {
			return models.Validationf("invalid seat %d in final scores", int(seat))
		}
	}
	return nil
}
