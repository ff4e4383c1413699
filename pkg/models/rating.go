package models

import (
	"time"

	"github.com/google/uuid"
)

const RatingHistoryTableName = "rating_history"

// RatingHistory is one player's rating movement from one finished game.
// The rating formula itself is opaque to the ledger; this only records
// before/after values handed back by the rating boundary.
type RatingHistory struct {
	ID           int64     `json:"id" db:"id"`
	PlayerID     uuid.UUID `json:"player_id" db:"player_id"`
	GameID       uuid.UUID `json:"game_id" db:"game_id"`
	RatingBefore float64   `json:"rating_before" db:"rating_before"`
	RatingAfter  float64   `json:"rating_after" db:"rating_after"`
	RatingChange float64   `json:"rating_change" db:"rating_change"`
	Placement    int       `json:"placement" db:"placement"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
