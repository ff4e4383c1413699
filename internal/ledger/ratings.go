package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

// initRatingHistory creates the rating_history table.
func (db *DB) initRatingHistory(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS rating_history (
			id BIGSERIAL PRIMARY KEY,
			player_id UUID NOT NULL,
			game_id UUID NOT NULL,
			rating_before DOUBLE PRECISION NOT NULL,
			rating_after DOUBLE PRECISION NOT NULL,
			rating_change DOUBLE PRECISION NOT NULL,
			placement INT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_rating_history_player ON rating_history(player_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_rating_history_game ON rating_history(game_id);
	`

	return db.Exec(ctx, query)
}

// InsertRatingHistory appends rating movements for one finished game.
func (db *DB) InsertRatingHistory(ctx context.Context, rows []models.RatingHistory) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, r := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO rating_history (player_id, game_id, rating_before, rating_after, rating_change, placement)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, r.PlayerID, r.GameID, r.RatingBefore, r.RatingAfter, r.RatingChange, r.Placement)
			if err != nil {
				return fmt.Errorf("insert rating row: %w", err)
			}
		}
		return nil
	})
}

// LatestRating returns a player's most recent rating, or the provided
// default when the player has no history yet.
func (db *DB) LatestRating(ctx context.Context, playerID uuid.UUID, def float64) (float64, error) {
	query := `
		SELECT rating_after
		FROM rating_history
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var rating float64
	err := db.Pool.QueryRow(ctx, query, playerID).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query latest rating: %w", err)
	}

	return rating, nil
}
