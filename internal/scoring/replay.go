// Package scoring holds the pure parts of the ledger: the seat/round model
// and the replay fold that turns an ordered event list into scores. Nothing
// in this package touches storage; replaying the same input twice always
// yields the same output, which is what the correction engine's forward
// recompute relies on.
package scoring

import (
	"math"
	"sort"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

// StartingScore is the per-seat score every game begins at.
const StartingScore = 25000

// Result is the outcome of replaying an event list.
type Result struct {
	Scores       models.Scores `json:"scores"`
	RiichiSticks int           `json:"riichi_sticks"`
	HandCount    int           `json:"hand_count"`
}

// StartingScores returns a fresh score vector with all four seats at
// StartingScore.
func StartingScores() models.Scores {
	scores := make(models.Scores, 4)
	for _, seat := range models.SeatOrder {
		scores[seat] = StartingScore
	}
	return scores
}

// Replay folds events in ledger order onto the standard starting scores.
func Replay(events []models.HandEvent) Result {
	return ReplayFrom(StartingScores(), events)
}

// ReplayFrom folds events onto an explicit baseline. The baseline parameter
// is what makes forward recomputation composable: the correction engine
// replays a single hand's events on top of the previous hand's snapshot.
//
// Events without a seat attribution contribute nothing to scores; they stay
// in the ledger for the reconciliation engine to resolve.
func ReplayFrom(baseline models.Scores, events []models.HandEvent) Result {
	scores := baseline.Clone()
	for _, seat := range models.SeatOrder {
		if _, ok := scores[seat]; !ok {
			scores[seat] = StartingScore
		}
	}

	var pot float64
	hands := make(map[int]struct{})
	for _, e := range events {
		if e.Seat != nil {
			scores[*e.Seat] += e.PointsDelta
		}
		// pot_delta is negative when a stick goes on the table, positive
		// when a winner claims the pot.
		pot += -e.PotDelta
		hands[e.HandSeq] = struct{}{}
	}

	// A transient negative pot means mid-hand state was replayed; it must
	// not crash the fold.
	sticks := int(math.Floor(pot / models.RiichiStickValue))
	if sticks < 0 {
		sticks = 0
	}

	return Result{
		Scores:       scores,
		RiichiSticks: sticks,
		HandCount:    len(hands),
	}
}

// ApplyEvents folds one hand's events onto a baseline and returns the new
// score vector, ignoring pot and hand-count bookkeeping.
func ApplyEvents(baseline models.Scores, events []models.HandEvent) models.Scores {
	return ReplayFrom(baseline, events).Scores
}

// Placements ranks seats by final score, 1 being first place. Ties break
// by seat order, east highest, per standard league rules.
func Placements(scores models.Scores) map[models.Seat]int {
	order := make([]models.Seat, 0, 4)
	order = append(order, models.SeatOrder[:]...)
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	placements := make(map[models.Seat]int, 4)
	for i, seat := range order {
		placements[seat] = i + 1
	}
	return placements
}
