// Package ledger is the PostgreSQL event ledger: the append-only, ordered
// store of hand events per game, plus the game/seat and rating history
// tables. It is the single writable source of truth; score interpretation
// lives in internal/scoring and the engines built on top of it.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB wraps the connection pool for ledger operations.
type DB struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
}

// New creates a ledger DB on an existing pool and ensures all tables exist.
func New(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*DB, error) {
	db := &DB{
		Pool:   pool,
		Logger: logger.With(zap.String("component", "ledger")),
	}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close releases the underlying pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Exec runs a statement without returning rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := db.Pool.Exec(ctx, query, args...)
	return err
}

// BeginFunc runs fn inside a transaction, committing on nil and rolling
// back on error.
func (db *DB) BeginFunc(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InitializeDB ensures the required tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing ledger tables")

	if err := db.initGames(ctx); err != nil {
		return fmt.Errorf("init games: %w", err)
	}
	if err := db.initHands(ctx); err != nil {
		return fmt.Errorf("init hands: %w", err)
	}
	if err := db.initHandEvents(ctx); err != nil {
		return fmt.Errorf("init hand_events: %w", err)
	}
	if err := db.initRatingHistory(ctx); err != nil {
		return fmt.Errorf("init rating_history: %w", err)
	}

	return nil
}
