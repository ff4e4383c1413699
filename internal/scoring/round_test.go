package scoring

import (
	"testing"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

func TestDealerSeat(t *testing.T) {
	cases := []struct {
		kyoku int
		want  models.Seat
	}{
		{1, models.East},
		{2, models.South},
		{3, models.West},
		{4, models.North},
	}
	for _, tc := range cases {
		if got := DealerSeat(tc.kyoku); got != tc.want {
			t.Errorf("DealerSeat(%d) = %s, want %s", tc.kyoku, got, tc.want)
		}
	}
}

func TestAdvanceRound(t *testing.T) {
	start := RoundState{Round: RoundEast, Kyoku: 1, Honba: 0}

	cases := []struct {
		name         string
		cur          RoundState
		outcome      string
		dealerWon    bool
		dealerTenpai bool
		want         RoundState
	}{
		{
			name: "dealer win repeats with honba",
			cur:  start, outcome: models.OutcomeRon, dealerWon: true,
			want: RoundState{Round: RoundEast, Kyoku: 1, Honba: 1},
		},
		{
			name: "non-dealer win advances and resets honba",
			cur:  RoundState{Round: RoundEast, Kyoku: 1, Honba: 2}, outcome: models.OutcomeRon,
			want: RoundState{Round: RoundEast, Kyoku: 2, Honba: 0},
		},
		{
			name: "chombo changes nothing",
			cur:  RoundState{Round: RoundEast, Kyoku: 3, Honba: 1}, outcome: models.OutcomeChombo,
			want: RoundState{Round: RoundEast, Kyoku: 3, Honba: 1},
		},
		{
			name: "abortive draw repeats with honba",
			cur:  start, outcome: models.OutcomeAbortiveDraw,
			want: RoundState{Round: RoundEast, Kyoku: 1, Honba: 1},
		},
		{
			name: "exhaustive draw with dealer tenpai repeats",
			cur:  start, outcome: models.OutcomeDraw, dealerTenpai: true,
			want: RoundState{Round: RoundEast, Kyoku: 1, Honba: 1},
		},
		{
			name: "exhaustive draw with dealer noten passes",
			cur:  start, outcome: models.OutcomeDraw,
			want: RoundState{Round: RoundEast, Kyoku: 2, Honba: 1},
		},
		{
			name: "east 4 rolls into south 1",
			cur:  RoundState{Round: RoundEast, Kyoku: 4, Honba: 1}, outcome: models.OutcomeTsumo,
			want: RoundState{Round: RoundSouth, Kyoku: 1, Honba: 0},
		},
		{
			name: "state holds past south 4",
			cur:  RoundState{Round: RoundSouth, Kyoku: 4, Honba: 0}, outcome: models.OutcomeRon,
			want: RoundState{Round: RoundSouth, Kyoku: 4, Honba: 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdvanceRound(tc.cur, tc.outcome, tc.dealerWon, tc.dealerTenpai)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
