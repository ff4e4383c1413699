package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

type memStore struct {
	hands  []models.Hand
	events map[int][]models.HandEvent

	attributed map[int][]int // hand_seq -> committed event indexes
	completed  []int
	snapshots  map[int]models.Scores // hand_seq -> rewritten scores_after
}

func newMemStore() *memStore {
	return &memStore{
		events:     make(map[int][]models.HandEvent),
		attributed: make(map[int][]int),
		snapshots:  make(map[int]models.Scores),
	}
}

func (m *memStore) addHand(seq int, complete bool, events ...models.HandEvent) {
	hand := models.Hand{ID: uuid.New(), HandSeq: seq, Outcome: models.OutcomeRon}
	if complete {
		now := time.Now()
		hand.CompletedAt = &now
	}
	m.hands = append(m.hands, hand)
	m.events[seq] = events
}

func (m *memStore) ListHands(_ context.Context, _ uuid.UUID) ([]models.Hand, error) {
	return m.hands, nil
}

func (m *memStore) ListEventsForHand(_ context.Context, _ uuid.UUID, handSeq int) ([]models.HandEvent, error) {
	return m.events[handSeq], nil
}

func (m *memStore) AttributeEvent(_ context.Context, _ uuid.UUID, handSeq, eventIndex int, seat models.Seat, _ map[string]any) error {
	events := m.events[handSeq]
	for i := range events {
		if events[i].EventIndex == eventIndex {
			s := seat
			events[i].Seat = &s
		}
	}
	m.attributed[handSeq] = append(m.attributed[handSeq], eventIndex)
	return nil
}

func (m *memStore) CompleteHand(_ context.Context, _ uuid.UUID, handSeq int, _ map[string]any, _ string) error {
	m.completed = append(m.completed, handSeq)
	return nil
}

func (m *memStore) UpdateScoresAfter(_ context.Context, _ uuid.UUID, handSeq int, scores models.Scores) error {
	m.snapshots[handSeq] = scores
	return nil
}

func seatPtr(s models.Seat) *models.Seat {
	return &s
}

func finalScores(east, south, west, north float64) models.Scores {
	return models.Scores{
		models.East:  east,
		models.South: south,
		models.West:  west,
		models.North: north,
	}
}

func TestReconcileNoIncompleteHandsIsNoOp(t *testing.T) {
	store := newMemStore()
	store.addHand(1, true,
		models.HandEvent{HandSeq: 1, EventIndex: 0, Seat: seatPtr(models.South), ActionType: models.ActionWin, PointsDelta: 8000},
		models.HandEvent{HandSeq: 1, EventIndex: 1, Seat: seatPtr(models.East), ActionType: models.ActionPayment, PointsDelta: -8000},
	)

	engine := New(Config{Store: store})

	summary, err := engine.Reconcile(context.Background(), uuid.New(), finalScores(17000, 33000, 25000, 25000))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !summary.Reconciled {
		t.Fatalf("expected reconciled")
	}
	if len(summary.InferredHands) != 0 {
		t.Fatalf("expected no inferences, got %v", summary.InferredHands)
	}
	if len(store.attributed) != 0 || len(store.completed) != 0 || len(store.snapshots) != 0 {
		t.Fatalf("no-op run mutated the ledger")
	}
}

func TestReconcileInfersUniqueWinner(t *testing.T) {
	store := newMemStore()
	// Complete hand: south rons east for 8000.
	store.addHand(1, true,
		models.HandEvent{HandSeq: 1, EventIndex: 0, Seat: seatPtr(models.South), ActionType: models.ActionWin, PointsDelta: 8000},
		models.HandEvent{HandSeq: 1, EventIndex: 1, Seat: seatPtr(models.East), ActionType: models.ActionPayment, PointsDelta: -8000},
	)
	// Incomplete hand: 3900 win, winner dropped, north paid.
	store.addHand(2, false,
		models.HandEvent{HandSeq: 2, EventIndex: 0, Seat: nil, ActionType: models.ActionWin, PointsDelta: 3900},
		models.HandEvent{HandSeq: 2, EventIndex: 1, Seat: seatPtr(models.North), ActionType: models.ActionPayment, PointsDelta: -3900},
	)

	engine := New(Config{Store: store})

	// Final scores say west finished at 28900: west is the only seat whose
	// unexplained delta matches the 3900 win.
	summary, err := engine.Reconcile(context.Background(), uuid.New(), finalScores(17000, 33000, 28900, 21100))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(summary.InferredHands) != 1 {
		t.Fatalf("inferences: got %d, want 1", len(summary.InferredHands))
	}
	inf := summary.InferredHands[0]
	if inf.Seat == nil || *inf.Seat != models.West {
		t.Fatalf("inferred seat: got %v, want west", inf.Seat)
	}
	if inf.Confidence != HighConfidence {
		t.Fatalf("confidence: got %v, want %v", inf.Confidence, HighConfidence)
	}
	if !inf.Committed {
		t.Fatalf("high-confidence inference not committed")
	}
	if summary.HighConfidence != 1 || summary.LowConfidence != 0 {
		t.Fatalf("counts: high=%d low=%d", summary.HighConfidence, summary.LowConfidence)
	}

	if got := store.attributed[2]; len(got) != 1 || got[0] != 0 {
		t.Fatalf("attributed events for hand 2: %v", got)
	}
	if len(store.completed) != 1 || store.completed[0] != 2 {
		t.Fatalf("completed hands: %v", store.completed)
	}

	// Committing an attribution rewrites every cached snapshot, so readers
	// that trust scores_after see the inferred winner too.
	if len(store.snapshots) != 2 {
		t.Fatalf("snapshots rewritten: got %d hands, want 2", len(store.snapshots))
	}
	want := finalScores(17000, 33000, 28900, 21100)
	got := store.snapshots[2]
	for _, seat := range models.SeatOrder {
		if got[seat] != want[seat] {
			t.Fatalf("snapshot for hand 2: got %v, want %v", got, want)
		}
	}
}

func TestReconcileTieStaysLowConfidence(t *testing.T) {
	store := newMemStore()
	// Two seats (west and north) each missing exactly 3900: a tie.
	store.addHand(1, false,
		models.HandEvent{HandSeq: 1, EventIndex: 0, Seat: nil, ActionType: models.ActionWin, PointsDelta: 3900},
		models.HandEvent{HandSeq: 1, EventIndex: 1, Seat: seatPtr(models.East), ActionType: models.ActionPayment, PointsDelta: -3900},
	)

	engine := New(Config{Store: store})

	summary, err := engine.Reconcile(context.Background(), uuid.New(), finalScores(21100, 25000, 28900, 28900))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(summary.InferredHands) != 1 {
		t.Fatalf("inferences: got %d, want 1", len(summary.InferredHands))
	}
	inf := summary.InferredHands[0]
	if inf.Seat != nil {
		t.Fatalf("ambiguous match committed a seat: %v", *inf.Seat)
	}
	if inf.Confidence != LowConfidence {
		t.Fatalf("confidence: got %v, want %v", inf.Confidence, LowConfidence)
	}
	if inf.Committed {
		t.Fatalf("low-confidence inference committed")
	}
	if len(store.attributed) != 0 || len(store.completed) != 0 || len(store.snapshots) != 0 {
		t.Fatalf("tie mutated the ledger")
	}
	if summary.LowConfidence != 1 {
		t.Fatalf("low confidence count: got %d, want 1", summary.LowConfidence)
	}
}

func TestReconcileMatchWithinTolerance(t *testing.T) {
	store := newMemStore()
	store.addHand(1, false,
		models.HandEvent{HandSeq: 1, EventIndex: 0, Seat: nil, ActionType: models.ActionWin, PointsDelta: 3900},
		models.HandEvent{HandSeq: 1, EventIndex: 1, Seat: seatPtr(models.East), ActionType: models.ActionPayment, PointsDelta: -3900},
	)

	engine := New(Config{Store: store})

	// West's unexplained delta is 3800, inside the 100-point tolerance.
	summary, err := engine.Reconcile(context.Background(), uuid.New(), finalScores(21100, 25000, 28800, 25100))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	inf := summary.InferredHands[0]
	if inf.Seat == nil || *inf.Seat != models.West {
		t.Fatalf("inferred seat: got %v, want west", inf.Seat)
	}
	if !inf.Committed {
		t.Fatalf("near-match inference not committed")
	}
}

func TestReconcileNoMatch(t *testing.T) {
	store := newMemStore()
	store.addHand(1, false,
		models.HandEvent{HandSeq: 1, EventIndex: 0, Seat: nil, ActionType: models.ActionWin, PointsDelta: 12000},
		models.HandEvent{HandSeq: 1, EventIndex: 1, Seat: seatPtr(models.East), ActionType: models.ActionPayment, PointsDelta: -12000},
	)

	engine := New(Config{Store: store})

	// Nobody's unexplained delta is anywhere near 12000.
	summary, err := engine.Reconcile(context.Background(), uuid.New(), finalScores(24000, 25500, 25500, 25000))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	inf := summary.InferredHands[0]
	if inf.Seat != nil || inf.Committed {
		t.Fatalf("no-match inference committed: %+v", inf)
	}
	if len(store.completed) != 0 {
		t.Fatalf("uncommitted hand marked complete")
	}
}

func TestReconcileRejectsMalformedFinalScores(t *testing.T) {
	engine := New(Config{Store: newMemStore()})

	cases := []struct {
		name   string
		scores models.Scores
	}{
		{"nil", nil},
		{"too few seats", models.Scores{models.East: 25000}},
		{"invalid seat", models.Scores{
			models.East: 25000, models.South: 25000, models.West: 25000, models.Seat(7): 25000,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Reconcile(context.Background(), uuid.New(), tc.scores)
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}
