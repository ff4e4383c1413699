package scoring

import (
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// Round labels in play order. Official league rule sets only play East and
// South rounds; advancing past the last defined round holds state there
// until the behavior for longer formats is specified.
const (
	RoundEast  = "E"
	RoundSouth = "S"
	RoundWest  = "W"
	RoundNorth = "N"
)

var definedRounds = []string{RoundEast, RoundSouth}

// RoundState is the round/kyoku/honba position of a game.
type RoundState struct {
	Round string `json:"round"`
	Kyoku int    `json:"kyoku"`
	Honba int    `json:"honba"`
}

// DealerSeat returns the dealer for a kyoku: seat at cyclic index kyoku-1
// in the fixed rotation order.
func DealerSeat(kyoku int) models.Seat {
	return models.SeatOrder[((kyoku-1)%4+4)%4]
}

// AdvanceRound derives the next round state from a hand outcome.
//
//   - chombo: penalty hand, no progression at all.
//   - dealer win: honba increments, dealer repeats.
//   - abortive draw: honba increments, dealer repeats.
//   - exhaustive draw: honba always increments; the deal passes unless the
//     dealer was tenpai.
//   - non-dealer win: honba resets, the deal passes.
func AdvanceRound(cur RoundState, outcome string, dealerWon, dealerTenpai bool) RoundState {
	next := cur

	switch {
	case outcome == models.OutcomeChombo:
		return next
	case dealerWon:
		next.Honba++
		return next
	case outcome == models.OutcomeAbortiveDraw:
		next.Honba++
		return next
	case outcome == models.OutcomeDraw:
		next.Honba++
		if !dealerTenpai {
			next.Round, next.Kyoku = nextKyoku(cur.Round, cur.Kyoku)
		}
		return next
	default:
		next.Honba = 0
		next.Round, next.Kyoku = nextKyoku(cur.Round, cur.Kyoku)
		return next
	}
}

// nextKyoku advances the deal, rolling into the next defined round after
// kyoku 4. Past the last defined round the state holds.
func nextKyoku(round string, kyoku int) (string, int) {
	if kyoku < 4 {
		return round, kyoku + 1
	}
	for i, r := range definedRounds {
		if r == round && i+1 < len(definedRounds) {
			return definedRounds[i+1], 1
		}
	}
	return round, kyoku
}
