package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

// initHands creates the hands table.
func (db *DB) initHands(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hands (
			id UUID NOT NULL UNIQUE,
			game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			hand_seq INT NOT NULL,
			round TEXT NOT NULL DEFAULT 'E',
			kyoku INT NOT NULL DEFAULT 1,
			honba INT NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			details JSONB NOT NULL DEFAULT '{}',
			scores_after JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE,
			PRIMARY KEY (game_id, hand_seq)
		);

		CREATE INDEX IF NOT EXISTS idx_hands_completed ON hands(game_id, completed_at);
	`

	return db.Exec(ctx, query)
}

const handColumns = `id, game_id, hand_seq, round, kyoku, honba, outcome, notes, details, scores_after, created_at, updated_at, completed_at`

func scanHand(row pgx.Row) (*models.Hand, error) {
	var h models.Hand
	err := row.Scan(
		&h.ID, &h.GameID, &h.HandSeq, &h.Round, &h.Kyoku, &h.Honba,
		&h.Outcome, &h.Notes, &h.Details, &h.ScoresAfter,
		&h.CreatedAt, &h.UpdatedAt, &h.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrHandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan hand: %w", err)
	}
	return &h, nil
}

// AppendHand appends one hand and its events. The zero-sum invariant is
// checked before anything is written; a rejected append touches nothing.
// hand.ScoresAfter must already hold the fold of these events onto the
// previous hand's snapshot.
func (db *DB) AppendHand(ctx context.Context, hand *models.Hand, events []models.HandEvent) error {
	if err := models.ValidateZeroSum(events); err != nil {
		return err
	}

	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO hands (id, game_id, hand_seq, round, kyoku, honba, outcome, notes, details, scores_after, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, hand.ID, hand.GameID, hand.HandSeq, hand.Round, hand.Kyoku, hand.Honba,
			hand.Outcome, hand.Notes, normalizeDetails(hand.Details), hand.ScoresAfter, hand.CompletedAt)
		if err != nil {
			return fmt.Errorf("insert hand: %w", err)
		}

		return insertEvents(ctx, tx, hand.GameID, hand.HandSeq, events)
	})
	if err != nil {
		return err
	}

	db.Logger.Debug("hand appended",
		zap.String("game_id", hand.GameID.String()),
		zap.Int("hand_seq", hand.HandSeq),
		zap.Int("events", len(events)))
	return nil
}

// GetHand returns a hand by its ID within a game.
func (db *DB) GetHand(ctx context.Context, gameID, handID uuid.UUID) (*models.Hand, error) {
	query := fmt.Sprintf(`SELECT %s FROM hands WHERE game_id = $1 AND id = $2`, handColumns)
	return scanHand(db.Pool.QueryRow(ctx, query, gameID, handID))
}

// GetHandBySeq returns a hand by its sequence number.
func (db *DB) GetHandBySeq(ctx context.Context, gameID uuid.UUID, handSeq int) (*models.Hand, error) {
	query := fmt.Sprintf(`SELECT %s FROM hands WHERE game_id = $1 AND hand_seq = $2`, handColumns)
	return scanHand(db.Pool.QueryRow(ctx, query, gameID, handSeq))
}

// ListHands returns all hands of a game ordered by hand_seq.
func (db *DB) ListHands(ctx context.Context, gameID uuid.UUID) ([]models.Hand, error) {
	return db.listHands(ctx, gameID, 0)
}

// ListHandsAfter returns hands with hand_seq strictly greater than afterSeq,
// in order. This is the forward-recompute scan of the correction engine.
func (db *DB) ListHandsAfter(ctx context.Context, gameID uuid.UUID, afterSeq int) ([]models.Hand, error) {
	return db.listHands(ctx, gameID, afterSeq)
}

func (db *DB) listHands(ctx context.Context, gameID uuid.UUID, afterSeq int) ([]models.Hand, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM hands
		WHERE game_id = $1 AND hand_seq > $2
		ORDER BY hand_seq ASC
	`, handColumns)

	rows, err := db.Pool.Query(ctx, query, gameID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query hands: %w", err)
	}
	defer rows.Close()

	var hands []models.Hand
	for rows.Next() {
		h, err := scanHand(rows)
		if err != nil {
			return nil, err
		}
		hands = append(hands, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return hands, nil
}

// NextHandSeq returns the next free hand_seq for a game (1 for a fresh
// game).
func (db *DB) NextHandSeq(ctx context.Context, gameID uuid.UUID) (int, error) {
	var next int
	err := db.Pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(hand_seq), 0) + 1 FROM hands WHERE game_id = $1
	`, gameID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("query next hand_seq: %w", err)
	}
	return next, nil
}

// PreviousSnapshot returns the cached scores_after of the hand immediately
// before handSeq, or nil when there is no earlier hand (the caller falls
// back to the starting scores).
func (db *DB) PreviousSnapshot(ctx context.Context, gameID uuid.UUID, handSeq int) (models.Scores, error) {
	query := `
		SELECT scores_after
		FROM hands
		WHERE game_id = $1 AND hand_seq < $2 AND scores_after IS NOT NULL
		ORDER BY hand_seq DESC
		LIMIT 1
	`

	var scores models.Scores
	err := db.Pool.QueryRow(ctx, query, gameID, handSeq).Scan(&scores)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query previous snapshot: %w", err)
	}

	return scores, nil
}

// UpdateScoresAfter overwrites a hand's cached snapshot.
func (db *DB) UpdateScoresAfter(ctx context.Context, gameID uuid.UUID, handSeq int, scores models.Scores) error {
	return db.Exec(ctx, `
		UPDATE hands SET scores_after = $3, updated_at = NOW()
		WHERE game_id = $1 AND hand_seq = $2
	`, gameID, handSeq, scores)
}

// ReplaceHandEvents swaps out a hand's events and snapshot in one
// transaction: old events deleted, new events inserted, scores_after and
// updated_at bumped.
func (db *DB) ReplaceHandEvents(ctx context.Context, gameID uuid.UUID, handSeq int, events []models.HandEvent, scoresAfter models.Scores) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM hand_events WHERE game_id = $1 AND hand_seq = $2
		`, gameID, handSeq)
		if err != nil {
			return fmt.Errorf("delete old events: %w", err)
		}

		if err := insertEvents(ctx, tx, gameID, handSeq, events); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE hands SET scores_after = $3, updated_at = NOW()
			WHERE game_id = $1 AND hand_seq = $2
		`, gameID, handSeq, scoresAfter)
		if err != nil {
			return fmt.Errorf("update snapshot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrHandNotFound
		}
		return nil
	})
}

// DeleteHand removes a hand and its events.
func (db *DB) DeleteHand(ctx context.Context, gameID uuid.UUID, handSeq int) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM hand_events WHERE game_id = $1 AND hand_seq = $2
		`, gameID, handSeq)
		if err != nil {
			return fmt.Errorf("delete events: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM hands WHERE game_id = $1 AND hand_seq = $2
		`, gameID, handSeq)
		if err != nil {
			return fmt.Errorf("delete hand: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrHandNotFound
		}
		return nil
	})
}

// CompleteHand stamps completed_at, merges details, and appends a note.
// Used by the reconciliation engine when committing an inference.
func (db *DB) CompleteHand(ctx context.Context, gameID uuid.UUID, handSeq int, details map[string]any, note string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE hands
		SET completed_at = NOW(),
		    updated_at = NOW(),
		    details = details || $3,
		    notes = CASE WHEN notes = '' THEN $4 ELSE notes || E'\n' || $4 END
		WHERE game_id = $1 AND hand_seq = $2
	`, gameID, handSeq, normalizeDetails(details), note)
	if err != nil {
		return fmt.Errorf("complete hand: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrHandNotFound
	}
	return nil
}
