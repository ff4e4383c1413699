// Package rating is the boundary to the rating computation. The formula
// itself is opaque to the ledger: anything that can turn placements and
// scores into per-seat rating deltas plugs in here.
package rating

import (
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// Computer produces per-seat rating deltas for one finished game.
type Computer interface {
	Deltas(placements map[models.Seat]int, scores models.Scores) map[models.Seat]float64
}

// PlacementDeltas is a fixed-movement placeholder: rating moves by
// placement only. The league's real curve slots in behind the same
// interface.
type PlacementDeltas struct{}

var deltaByPlacement = map[int]float64{1: 30, 2: 10, 3: -10, 4: -30}

// Deltas implements Computer.
func (PlacementDeltas) Deltas(placements map[models.Seat]int, _ models.Scores) map[models.Seat]float64 {
	out := make(map[models.Seat]float64, len(placements))
	for seat, place := range placements {
		out[seat] = deltaByPlacement[place]
	}
	return out
}
