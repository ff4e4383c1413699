package models

import (
	"fmt"
)

// Seat is one of the four fixed table positions. The integer values define
// both the dealer rotation cycle and the stable ordering used by the ledger
// when listing events.
type Seat int

const (
	East Seat = iota
	South
	West
	North
)

// SeatOrder is the fixed dealer rotation cycle.
var SeatOrder = [4]Seat{East, South, West, North}

var seatNames = [4]string{"east", "south", "west", "north"}

// String returns the lowercase seat name.
func (s Seat) String() string {
	if !s.Valid() {
		return fmt.Sprintf("seat(%d)", int(s))
	}
	return seatNames[s]
}

// Valid reports whether s is one of the four defined seats.
func (s Seat) Valid() bool {
	return s >= East && s <= North
}

// MarshalText implements encoding.TextMarshaler so Seat works as a JSON
// value and as a JSON object key (score snapshots are keyed by seat).
func (s Seat) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid seat %d", int(s))
	}
	return []byte(seatNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Seat) UnmarshalText(text []byte) error {
	parsed, err := ParseSeat(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeat converts a seat name to a Seat.
func ParseSeat(name string) (Seat, error) {
	for i, n := range seatNames {
		if n == name {
			return Seat(i), nil
		}
	}
	return 0, fmt.Errorf("unknown seat %q", name)
}

// Scores is a per-seat score vector. It marshals to JSON keyed by seat name,
// which is the shape cached in hands.scores_after.
type Scores map[Seat]float64

// Clone returns a copy of the score vector.
func (sc Scores) Clone() Scores {
	out := make(Scores, len(sc))
	for seat, v := range sc {
		out[seat] = v
	}
	return out
}
