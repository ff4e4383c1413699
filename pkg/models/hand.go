package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const HandsTableName = "hands"
const HandEventsTableName = "hand_events"

// Hand outcomes.
const (
	OutcomeTsumo        = "tsumo"
	OutcomeRon          = "ron"
	OutcomeDraw         = "draw"          // exhaustive draw
	OutcomeAbortiveDraw = "abortive_draw" // e.g. four riichi, nine terminals
	OutcomeChombo       = "chombo"
)

// Event action types.
const (
	ActionWin     = "win"
	ActionPayment = "payment"
	ActionRiichi  = "riichi"
	ActionTenpai  = "tenpai"
	ActionNoten   = "noten"
	ActionPenalty = "penalty"
)

// RiichiStickValue is the point cost of one riichi stick.
const RiichiStickValue = 1000

// ZeroSumEpsilon is the tolerance applied when checking that a hand's point
// deltas sum to zero.
const ZeroSumEpsilon = 0.01

// Hand is one deal within a game, identified by a strictly increasing
// hand_seq. ScoresAfter is a derived cache of the replay result at this
// point in the ledger; it is always re-derivable from the full event list.
type Hand struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	GameID      uuid.UUID      `json:"game_id" db:"game_id"`
	HandSeq     int            `json:"hand_seq" db:"hand_seq"`
	Round       string         `json:"round" db:"round"` // "E", "S", "W", "N"
	Kyoku       int            `json:"kyoku" db:"kyoku"` // 1-4
	Honba       int            `json:"honba" db:"honba"`
	Outcome     string         `json:"outcome" db:"outcome"`
	Notes       string         `json:"notes,omitempty" db:"notes"`
	Details     map[string]any `json:"details,omitempty" db:"details"`
	ScoresAfter Scores         `json:"scores_after,omitempty" db:"scores_after"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// HandEvent is an atomic point delta attached to one seat within one hand.
// Seat is nil when the attribution is unknown (lost during live recording);
// such events are the reconciliation engine's input.
type HandEvent struct {
	GameID         uuid.UUID      `json:"game_id" db:"game_id"`
	HandSeq        int            `json:"hand_seq" db:"hand_seq"`
	EventIndex     int            `json:"event_index" db:"event_index"`
	Seat           *Seat          `json:"seat" db:"seat"`
	ActionType     string         `json:"action_type" db:"action_type"`
	PointsDelta    float64        `json:"points_delta" db:"points_delta"`
	PotDelta       float64        `json:"pot_delta" db:"pot_delta"`
	RiichiDeclared bool           `json:"riichi_declared" db:"riichi_declared"`
	TargetSeat     *Seat          `json:"target_seat,omitempty" db:"target_seat"`
	Details        map[string]any `json:"details,omitempty" db:"details"`
}

// Attributed reports whether the event has a known seat.
func (e HandEvent) Attributed() bool {
	return e.Seat != nil
}

// SumPointsDelta returns the total of points_delta across events.
func SumPointsDelta(events []HandEvent) float64 {
	var total float64
	for _, e := range events {
		total += e.PointsDelta
	}
	return total
}

// ValidateZeroSum enforces the closed-system invariant: the point deltas of
// one hand must sum to zero within ZeroSumEpsilon. Violations are rejected
// before anything is persisted.
func ValidateZeroSum(events []HandEvent) error {
	total := SumPointsDelta(events)
	if math.Abs(total) > ZeroSumEpsilon {
		return &UnbalancedError{Total: total}
	}
	return nil
}
