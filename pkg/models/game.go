package models

import (
	"time"

	"github.com/google/uuid"
)

const GamesTableName = "games"
const GameSeatsTableName = "game_seats"

// Game formats.
const (
	FormatHanchan   = "hanchan"   // east + south rounds
	FormatTonpuusen = "tonpuusen" // east round only
)

// Game statuses. Transitions are monotonic: a finished or cancelled game
// never goes back to ongoing.
const (
	StatusScheduled = "scheduled"
	StatusOngoing   = "ongoing"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// Game is one table of exactly four players.
type Game struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Format     string     `json:"format" db:"format"`
	Status     string     `json:"status" db:"status"`
	Notes      string     `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// GameSeat maps a seat to the player occupying it for one game, plus the
// authoritative final score once the game is finished.
type GameSeat struct {
	GameID     uuid.UUID `json:"game_id" db:"game_id"`
	Seat       Seat      `json:"seat" db:"seat"`
	PlayerID   uuid.UUID `json:"player_id" db:"player_id"`
	FinalScore *float64  `json:"final_score,omitempty" db:"final_score"`
}

// FinishedGame is the payload handed to the rating pipeline once a game is
// finished with a fully attributed ledger.
type FinishedGame struct {
	GameID     uuid.UUID          `json:"game_id"`
	FinishedAt time.Time          `json:"finished_at"`
	Scores     Scores             `json:"scores"`
	Placements map[Seat]int       `json:"placements"` // 1 = first place
	Players    map[Seat]uuid.UUID `json:"players"`
}
