package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kanpai-games/league-ledger/internal/scoring"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

type memStore struct {
	games  []uuid.UUID
	hands  map[uuid.UUID][]models.Hand
	events map[uuid.UUID]map[int][]models.HandEvent
}

func newMemStore() *memStore {
	return &memStore{
		hands:  make(map[uuid.UUID][]models.Hand),
		events: make(map[uuid.UUID]map[int][]models.HandEvent),
	}
}

func (m *memStore) addGame() uuid.UUID {
	id := uuid.New()
	m.games = append(m.games, id)
	m.events[id] = make(map[int][]models.HandEvent)
	return id
}

func (m *memStore) addHand(gameID uuid.UUID, seq int, snapshot models.Scores, events ...models.HandEvent) {
	m.hands[gameID] = append(m.hands[gameID], models.Hand{
		HandSeq:     seq,
		ScoresAfter: snapshot,
	})
	m.events[gameID][seq] = events
}

func (m *memStore) ListGameIDs(_ context.Context) ([]uuid.UUID, error) {
	return m.games, nil
}

func (m *memStore) ListHands(_ context.Context, gameID uuid.UUID) ([]models.Hand, error) {
	return m.hands[gameID], nil
}

func (m *memStore) ListEventsForHand(_ context.Context, gameID uuid.UUID, handSeq int) ([]models.HandEvent, error) {
	return m.events[gameID][handSeq], nil
}

type fakeRecomputer struct {
	calls map[uuid.UUID]int
}

func (f *fakeRecomputer) RecomputeForward(_ context.Context, gameID uuid.UUID, afterSeq int) error {
	if f.calls == nil {
		f.calls = make(map[uuid.UUID]int)
	}
	f.calls[gameID] = afterSeq
	return nil
}

func seatPtr(s models.Seat) *models.Seat {
	return &s
}

func ronEvents(winner, loser models.Seat, points float64) []models.HandEvent {
	return []models.HandEvent{
		{EventIndex: 0, Seat: seatPtr(winner), ActionType: models.ActionWin, PointsDelta: points},
		{EventIndex: 1, Seat: seatPtr(loser), ActionType: models.ActionPayment, PointsDelta: -points},
	}
}

func TestVerifyCleanGame(t *testing.T) {
	store := newMemStore()
	game := store.addGame()

	events := ronEvents(models.South, models.East, 8000)
	snapshot := scoring.ApplyEvents(scoring.StartingScores(), events)
	store.addHand(game, 1, snapshot, events...)

	stats, err := Verify(context.Background(), store, game)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if stats.TotalHands != 1 || stats.StaleHands != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestVerifyDetectsStaleSnapshot(t *testing.T) {
	store := newMemStore()
	game := store.addGame()

	h1 := ronEvents(models.South, models.East, 8000)
	snap1 := scoring.ApplyEvents(scoring.StartingScores(), h1)
	store.addHand(game, 1, snap1, h1...)

	// Hand 2's cached snapshot was never updated after an edit to hand 1.
	h2 := ronEvents(models.West, models.North, 3900)
	stale := models.Scores{models.East: 0, models.South: 0, models.West: 0, models.North: 0}
	store.addHand(game, 2, stale, h2...)

	stats, err := Verify(context.Background(), store, game)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if stats.StaleHands != 1 {
		t.Fatalf("stale hands: got %d, want 1", stats.StaleHands)
	}
	if stats.FirstStale != 2 {
		t.Fatalf("first stale: got %d, want 2", stats.FirstStale)
	}
}

func TestRunRepairsFromFirstStale(t *testing.T) {
	store := newMemStore()

	clean := store.addGame()
	events := ronEvents(models.South, models.East, 8000)
	store.addHand(clean, 1, scoring.ApplyEvents(scoring.StartingScores(), events), events...)

	broken := store.addGame()
	h1 := ronEvents(models.South, models.East, 8000)
	store.addHand(broken, 1, scoring.ApplyEvents(scoring.StartingScores(), h1), h1...)
	h2 := ronEvents(models.West, models.North, 3900)
	store.addHand(broken, 2, models.Scores{models.East: 0, models.South: 0, models.West: 0, models.North: 0}, h2...)

	rec := &fakeRecomputer{}
	bf := New(store, rec, &Config{BatchSize: 10, Concurrency: 1, ProgressInterval: time.Minute})

	result, err := bf.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalProcessed != 2 {
		t.Fatalf("processed: got %d, want 2", result.TotalProcessed)
	}
	if result.StaleGames != 1 || result.StaleHands != 1 || result.TotalRepaired != 1 {
		t.Fatalf("result: %+v", result)
	}
	if _, ok := rec.calls[clean]; ok {
		t.Fatalf("clean game recomputed")
	}
	if after, ok := rec.calls[broken]; !ok || after != 1 {
		t.Fatalf("recompute for broken game: got %d (present %v), want 1", after, ok)
	}
}

func TestRunDryRunDoesNotRepair(t *testing.T) {
	store := newMemStore()
	game := store.addGame()
	events := ronEvents(models.South, models.East, 8000)
	store.addHand(game, 1, models.Scores{models.East: 0, models.South: 0, models.West: 0, models.North: 0}, events...)

	rec := &fakeRecomputer{}
	bf := New(store, rec, &Config{BatchSize: 10, Concurrency: 1, DryRun: true, ProgressInterval: time.Minute})

	result, err := bf.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StaleHands != 1 || result.TotalRepaired != 0 {
		t.Fatalf("result: %+v", result)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("dry run triggered a recompute")
	}
}
