package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

// initHandEvents creates the hand_events table.
func (db *DB) initHandEvents(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hand_events (
			game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			hand_seq INT NOT NULL,
			event_index INT NOT NULL,
			seat SMALLINT,
			action_type TEXT NOT NULL,
			points_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
			pot_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
			riichi_declared BOOLEAN NOT NULL DEFAULT false,
			target_seat SMALLINT,
			details JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (game_id, hand_seq, event_index)
		);

		CREATE INDEX IF NOT EXISTS idx_hand_events_game ON hand_events(game_id, hand_seq, seat);
	`

	return db.Exec(ctx, query)
}

// normalizeDetails guarantees the details columns always hold a jsonb
// object. A nil map encodes as the jsonb scalar null, and `details || $n`
// on a non-object operand concatenates both sides into an array instead of
// merging, which then fails to scan back into a map.
func normalizeDetails(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}

func seatToInt16(s *models.Seat) *int16 {
	if s == nil {
		return nil
	}
	v := int16(*s)
	return &v
}

func int16ToSeat(v *int16) *models.Seat {
	if v == nil {
		return nil
	}
	s := models.Seat(*v)
	return &s
}

// insertEvents writes one hand's events inside an existing transaction,
// assigning event_index from slice order.
func insertEvents(ctx context.Context, tx pgx.Tx, gameID uuid.UUID, handSeq int, events []models.HandEvent) error {
	for i, e := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO hand_events (game_id, hand_seq, event_index, seat, action_type, points_delta, pot_delta, riichi_declared, target_seat, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, gameID, handSeq, i, seatToInt16(e.Seat), e.ActionType,
			e.PointsDelta, e.PotDelta, e.RiichiDeclared, seatToInt16(e.TargetSeat), normalizeDetails(e.Details))
		if err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}
	return nil
}

const eventColumns = `game_id, hand_seq, event_index, seat, action_type, points_delta, pot_delta, riichi_declared, target_seat, details`

func scanEvents(rows pgx.Rows) ([]models.HandEvent, error) {
	defer rows.Close()

	var events []models.HandEvent
	for rows.Next() {
		var e models.HandEvent
		var seat, target *int16
		err := rows.Scan(
			&e.GameID, &e.HandSeq, &e.EventIndex, &seat, &e.ActionType,
			&e.PointsDelta, &e.PotDelta, &e.RiichiDeclared, &target, &e.Details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Seat = int16ToSeat(seat)
		e.TargetSeat = int16ToSeat(target)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

// ListEventsByGame returns every event of a game in ledger order:
// (hand_seq ASC, seat ASC NULLS LAST, event_index ASC). This ordering is
// load-bearing for deterministic replay and must stay stable.
func (db *DB) ListEventsByGame(ctx context.Context, gameID uuid.UUID) ([]models.HandEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM hand_events
		WHERE game_id = $1
		ORDER BY hand_seq ASC, seat ASC NULLS LAST, event_index ASC
	`, eventColumns)

	rows, err := db.Pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return scanEvents(rows)
}

// ListEventsForHand returns the events of a single hand in ledger order.
func (db *DB) ListEventsForHand(ctx context.Context, gameID uuid.UUID, handSeq int) ([]models.HandEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM hand_events
		WHERE game_id = $1 AND hand_seq = $2
		ORDER BY seat ASC NULLS LAST, event_index ASC
	`, eventColumns)

	rows, err := db.Pool.Query(ctx, query, gameID, handSeq)
	if err != nil {
		return nil, fmt.Errorf("query hand events: %w", err)
	}

	return scanEvents(rows)
}

// HasUnattributedEvents reports whether any event of a game still lacks a
// seat. The finish gate uses it: a game cannot hand results to the rating
// pipeline with unexplained point movement in its ledger.
func (db *DB) HasUnattributedEvents(ctx context.Context, gameID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM hand_events WHERE game_id = $1 AND seat IS NULL
		)
	`, gameID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query unattributed events: %w", err)
	}
	return exists, nil
}

// AttributeEvent sets the seat of a previously unattributed event and merges
// reconciliation metadata into its details.
func (db *DB) AttributeEvent(ctx context.Context, gameID uuid.UUID, handSeq, eventIndex int, seat models.Seat, details map[string]any) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE hand_events
		SET seat = $4, details = details || $5
		WHERE game_id = $1 AND hand_seq = $2 AND event_index = $3
	`, gameID, handSeq, eventIndex, int16(seat), normalizeDetails(details))
	if err != nil {
		return fmt.Errorf("attribute event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrHandNotFound
	}
	return nil
}
