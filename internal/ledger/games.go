package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

// initGames creates the games and game_seats tables.
func (db *DB) initGames(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS games (
			id UUID PRIMARY KEY,
			format TEXT NOT NULL DEFAULT 'hanchan',
			status TEXT NOT NULL DEFAULT 'scheduled',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMP WITH TIME ZONE
		);

		CREATE TABLE IF NOT EXISTS game_seats (
			game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			seat SMALLINT NOT NULL,
			player_id UUID NOT NULL,
			final_score DOUBLE PRECISION,
			PRIMARY KEY (game_id, seat)
		);

		CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);
		CREATE INDEX IF NOT EXISTS idx_game_seats_player ON game_seats(player_id);
	`

	return db.Exec(ctx, query)
}

// statusRank orders game statuses for the monotonic-transition check.
var statusRank = map[string]int{
	models.StatusScheduled: 0,
	models.StatusOngoing:   1,
	models.StatusFinished:  2,
	models.StatusCancelled: 2,
}

// validateTransition enforces monotonic status transitions. Finished and
// cancelled are terminal: a cancelled game cannot finish and a finished game
// cannot be cancelled.
func validateTransition(cur, next string) error {
	if _, ok := statusRank[next]; !ok {
		return models.Validationf("unknown status %q", next)
	}
	if cur == next {
		return nil
	}
	if cur == models.StatusFinished || cur == models.StatusCancelled {
		return models.Validationf("game is %s; status is final", cur)
	}
	if statusRank[next] < statusRank[cur] {
		return models.Validationf("cannot move game from %s back to %s", cur, next)
	}
	return nil
}

// CreateGame inserts a game and its four seat assignments atomically.
func (db *DB) CreateGame(ctx context.Context, game *models.Game, seats []models.GameSeat) error {
	if len(seats) != 4 {
		return models.Validationf("a game needs exactly 4 seats, got %d", len(seats))
	}
	filled := make(map[models.Seat]bool, 4)
	for _, gs := range seats {
		if !gs.Seat.Valid() {
			return models.Validationf("invalid seat %d", int(gs.Seat))
		}
		if filled[gs.Seat] {
			return models.Validationf("seat %s assigned twice", gs.Seat)
		}
		filled[gs.Seat] = true
	}

	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO games (id, format, status, notes)
			VALUES ($1, $2, $3, $4)
		`, game.ID, game.Format, game.Status, game.Notes)
		if err != nil {
			return fmt.Errorf("insert game: %w", err)
		}

		for _, gs := range seats {
			_, err := tx.Exec(ctx, `
				INSERT INTO game_seats (game_id, seat, player_id)
				VALUES ($1, $2, $3)
			`, game.ID, int16(gs.Seat), gs.PlayerID)
			if err != nil {
				return fmt.Errorf("insert seat %s: %w", gs.Seat, err)
			}
		}
		return nil
	})
}

// GetGame returns a game by ID.
func (db *DB) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	query := `
		SELECT id, format, status, notes, created_at, updated_at, finished_at
		FROM games
		WHERE id = $1
	`

	var g models.Game
	err := db.Pool.QueryRow(ctx, query, gameID).Scan(
		&g.ID, &g.Format, &g.Status, &g.Notes, &g.CreatedAt, &g.UpdatedAt, &g.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query game: %w", err)
	}

	return &g, nil
}

// GetSeats returns the seat-to-player mapping for a game, including final
// scores once the game is finished.
func (db *DB) GetSeats(ctx context.Context, gameID uuid.UUID) ([]models.GameSeat, error) {
	query := `
		SELECT game_id, seat, player_id, final_score
		FROM game_seats
		WHERE game_id = $1
		ORDER BY seat ASC
	`

	rows, err := db.Pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("query seats: %w", err)
	}
	defer rows.Close()

	var seats []models.GameSeat
	for rows.Next() {
		var gs models.GameSeat
		var seat int16
		if err := rows.Scan(&gs.GameID, &seat, &gs.PlayerID, &gs.FinalScore); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		gs.Seat = models.Seat(seat)
		seats = append(seats, gs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return seats, nil
}

// UpdateGameStatus applies a monotonic status transition. Moving backwards
// (finished -> ongoing) or out of a terminal status is rejected.
func (db *DB) UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status string) error {
	cur, err := db.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if err := validateTransition(cur.Status, status); err != nil {
		return err
	}

	return db.Exec(ctx, `
		UPDATE games SET status = $2, updated_at = NOW() WHERE id = $1
	`, gameID, status)
}

// FinishGame marks a game finished and records the authoritative final
// score per seat.
func (db *DB) FinishGame(ctx context.Context, gameID uuid.UUID, finalScores models.Scores) error {
	if len(finalScores) != 4 {
		return models.Validationf("final scores need exactly 4 seats, got %d", len(finalScores))
	}

	now := time.Now().UTC()
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE games
			SET status = $2, finished_at = $3, updated_at = NOW()
			WHERE id = $1 AND status = $4
		`, gameID, models.StatusFinished, now, models.StatusOngoing)
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Missing, already terminal, or never started; distinguish below.
			cur, err := db.GetGame(ctx, gameID)
			if err != nil {
				return err
			}
			return models.Validationf("cannot finish game in status %s", cur.Status)
		}

		for seat, score := range finalScores {
			_, err := tx.Exec(ctx, `
				UPDATE game_seats SET final_score = $3
				WHERE game_id = $1 AND seat = $2
			`, gameID, int16(seat), score)
			if err != nil {
				return fmt.Errorf("update final score for %s: %w", seat, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.Logger.Info("game finished",
		zap.String("game_id", gameID.String()),
		zap.Time("finished_at", now))
	return nil
}

// ListGameIDs returns the IDs of every game that has at least one hand,
// oldest first. Used by the snapshot backfill to walk the whole ledger.
func (db *DB) ListGameIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT g.id
		FROM games g
		WHERE EXISTS (SELECT 1 FROM hands h WHERE h.game_id = g.id)
		ORDER BY g.created_at ASC, g.id ASC
	`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query game ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// ListUnreconciledFinished returns IDs of finished games that still hold at
// least one unattributed event. Used by the periodic reconciliation health
// check and the reconcile CLI.
func (db *DB) ListUnreconciledFinished(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT g.id
		FROM games g
		JOIN hand_events e ON e.game_id = g.id
		WHERE g.status = 'finished' AND e.seat IS NULL
		ORDER BY g.id
	`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unreconciled games: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}
