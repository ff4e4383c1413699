package backfill

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/kanpai-games/league-ledger/internal/scoring"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// snapshotEpsilon bounds the float residue tolerated when comparing a cached
// snapshot to the replayed value.
const snapshotEpsilon = 0.01

// Store is the read slice of the ledger the backfill needs.
type Store interface {
	ListGameIDs(ctx context.Context) ([]uuid.UUID, error)
	ListHands(ctx context.Context, gameID uuid.UUID) ([]models.Hand, error)
	ListEventsForHand(ctx context.Context, gameID uuid.UUID, handSeq int) ([]models.HandEvent, error)
}

// Recomputer repairs stale snapshots. *correction.Engine satisfies it.
type Recomputer interface {
	RecomputeForward(ctx context.Context, gameID uuid.UUID, afterSeq int) error
}

// GameStats describes the snapshot health of a single game.
type GameStats struct {
	GameID     uuid.UUID
	TotalHands int
	StaleHands int
	FirstStale int // hand_seq of the earliest stale snapshot, 0 when none
}

// Stats aggregates snapshot health across games.
type Stats struct {
	TotalGames int
	TotalHands int
	StaleGames int
	StaleHands int
}

// Verify replays a game's event stream hand by hand and compares each
// running score against the hand's cached snapshot. A stale snapshot means
// a forward recompute was interrupted or skipped.
func Verify(ctx context.Context, store Store, gameID uuid.UUID) (*GameStats, error) {
	hands, err := store.ListHands(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}

	stats := &GameStats{GameID: gameID, TotalHands: len(hands)}

	running := scoring.StartingScores()
	for _, hand := range hands {
		events, err := store.ListEventsForHand(ctx, gameID, hand.HandSeq)
		if err != nil {
			return nil, fmt.Errorf("list events for hand %d: %w", hand.HandSeq, err)
		}

		running = scoring.ApplyEvents(running, events)

		if !scoresEqual(running, hand.ScoresAfter) {
			stats.StaleHands++
			if stats.FirstStale == 0 {
				stats.FirstStale = hand.HandSeq
			}
		}
	}

	return stats, nil
}

func scoresEqual(a, b models.Scores) bool {
	if len(b) != len(models.SeatOrder) {
		return false
	}
	for _, seat := range models.SeatOrder {
		if math.Abs(a[seat]-b[seat]) > snapshotEpsilon {
			return false
		}
	}
	return true
}
