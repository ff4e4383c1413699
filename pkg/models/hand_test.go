package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func seatPtr(s Seat) *Seat {
	return &s
}

func TestValidateZeroSum(t *testing.T) {
	balanced := []HandEvent{
		{Seat: seatPtr(South), ActionType: ActionWin, PointsDelta: 8000},
		{Seat: seatPtr(East), ActionType: ActionPayment, PointsDelta: -8000},
	}
	if err := ValidateZeroSum(balanced); err != nil {
		t.Fatalf("balanced hand rejected: %v", err)
	}

	unbalanced := []HandEvent{
		{Seat: seatPtr(South), ActionType: ActionWin, PointsDelta: 8000},
		{Seat: seatPtr(East), ActionType: ActionPayment, PointsDelta: -7000},
	}
	err := ValidateZeroSum(unbalanced)
	var ue *UnbalancedError
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want UnbalancedError", err)
	}
	if ue.Total != 1000 {
		t.Fatalf("total: got %v, want 1000", ue.Total)
	}
}

func TestValidateZeroSumFloatSlack(t *testing.T) {
	events := []HandEvent{
		{Seat: seatPtr(South), ActionType: ActionWin, PointsDelta: 1000.004},
		{Seat: seatPtr(East), ActionType: ActionPayment, PointsDelta: -1000},
	}
	if err := ValidateZeroSum(events); err != nil {
		t.Fatalf("sub-epsilon residue rejected: %v", err)
	}
}

func TestSeatParse(t *testing.T) {
	for _, seat := range SeatOrder {
		parsed, err := ParseSeat(seat.String())
		if err != nil {
			t.Fatalf("parse %q: %v", seat.String(), err)
		}
		if parsed != seat {
			t.Fatalf("round trip: got %v, want %v", parsed, seat)
		}
	}

	if _, err := ParseSeat("center"); err == nil {
		t.Fatalf("expected error for unknown seat")
	}
}

func TestScoresJSONKeys(t *testing.T) {
	scores := Scores{East: 21000, South: 29000, West: 25000, North: 25000}

	raw, err := json.Marshal(scores)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Scores
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded[South] != 29000 {
		t.Fatalf("south: got %v, want 29000", decoded[South])
	}
	if len(decoded) != 4 {
		t.Fatalf("seats: got %d, want 4", len(decoded))
	}
}

func TestAttributed(t *testing.T) {
	ev := HandEvent{ActionType: ActionWin, PointsDelta: 8000}
	if ev.Attributed() {
		t.Fatalf("nil seat reported attributed")
	}
	ev.Seat = seatPtr(West)
	if !ev.Attributed() {
		t.Fatalf("assigned seat reported unattributed")
	}
}
