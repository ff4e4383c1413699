package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kanpai-games/league-ledger/internal/rating"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// RatingStore persists rating movements. *ledger.DB satisfies it.
type RatingStore interface {
	LatestRating(ctx context.Context, playerID uuid.UUID, def float64) (float64, error)
	InsertRatingHistory(ctx context.Context, rows []models.RatingHistory) error
}

// Config configures the worker.
type Config struct {
	RedisClient   redis.UniversalClient
	Store         RatingStore
	Computer      rating.Computer
	Topic         string
	ConsumerGroup string
	Concurrency   int
	DefaultRating float64
}

// QueueStats holds queue statistics.
type QueueStats struct {
	StreamLength int64
	Pending      int64
	Consumers    int64
}

// Worker consumes finished games from Redis Streams and applies rating
// movements through the opaque rating boundary.
type Worker struct {
	router        *message.Router
	store         RatingStore
	computer      rating.Computer
	redisClient   redis.UniversalClient
	topic         string
	consumerGroup string
	defaultRating float64
}

// New creates a new Worker.
func New(cfg Config) (*Worker, error) {
	logger := watermill.NewSlogLogger(nil)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		router:        router,
		store:         cfg.Store,
		computer:      cfg.Computer,
		redisClient:   cfg.RedisClient,
		topic:         cfg.Topic,
		consumerGroup: cfg.ConsumerGroup,
		defaultRating: cfg.DefaultRating,
	}

	// One handler per consumer; the consumer group splits the stream
	// between them.
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		sub, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        cfg.RedisClient,
				ConsumerGroup: cfg.ConsumerGroup,
				Consumer:      fmt.Sprintf("rating-worker-%d", i),
			},
			logger,
		)
		if err != nil {
			return nil, err
		}

		router.AddNoPublisherHandler(
			fmt.Sprintf("rate-finished-game-%d", i),
			cfg.Topic,
			sub,
			w.handleFinishedGame,
		)
	}

	return w, nil
}

// handleFinishedGame processes a single finished-game message.
func (w *Worker) handleFinishedGame(msg *message.Message) error {
	start := time.Now()
	msgUUID := msg.UUID

	var game models.FinishedGame
	if err := json.Unmarshal(msg.Payload, &game); err != nil {
		slog.Warn("worker invalid payload",
			"msg_uuid", msgUUID,
			"len", len(msg.Payload),
			"err", err,
		)
		return nil // ack invalid messages to avoid infinite retry
	}

	slog.Info("worker rating start",
		"game_id", game.GameID,
		"msg_uuid", msgUUID,
	)

	ctx := context.Background()
	if err := w.applyRatings(ctx, &game); err != nil {
		duration := time.Since(start)
		slog.Error("worker rating failed",
			"game_id", game.GameID,
			"msg_uuid", msgUUID,
			"duration_ms", duration.Milliseconds(),
			"err", err,
		)
		// Delay before retry to avoid hammering on errors
		time.Sleep(5 * time.Second)
		return err // will be redelivered
	}

	duration := time.Since(start)
	slog.Info("worker rating done",
		"game_id", game.GameID,
		"msg_uuid", msgUUID,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// applyRatings loads each player's current rating, asks the rating boundary
// for deltas, and persists the movement.
func (w *Worker) applyRatings(ctx context.Context, game *models.FinishedGame) error {
	deltas := w.computer.Deltas(game.Placements, game.Scores)

	rows := make([]models.RatingHistory, 0, len(game.Players))
	for seat, playerID := range game.Players {
		before, err := w.store.LatestRating(ctx, playerID, w.defaultRating)
		if err != nil {
			return err
		}

		change := deltas[seat]
		rows = append(rows, models.RatingHistory{
			PlayerID:     playerID,
			GameID:       game.GameID,
			RatingBefore: before,
			RatingAfter:  before + change,
			RatingChange: change,
			Placement:    game.Placements[seat],
		})
	}

	return w.store.InsertRatingHistory(ctx, rows)
}

// Run starts the worker. It blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Close closes the worker.
func (w *Worker) Close() error {
	return w.router.Close()
}

// QueueStats returns current queue statistics.
func (w *Worker) QueueStats(ctx context.Context) (QueueStats, error) {
	var stats QueueStats

	// Get stream length
	length, err := w.redisClient.XLen(ctx, w.topic).Result()
	if err != nil {
		return stats, err
	}
	stats.StreamLength = length

	// Get consumer group info
	groups, err := w.redisClient.XInfoGroups(ctx, w.topic).Result()
	if err != nil {
		// Stream might not exist yet
		return stats, nil
	}

	for _, g := range groups {
		if g.Name == w.consumerGroup {
			stats.Pending = g.Pending
			stats.Consumers = g.Consumers
			break
		}
	}

	return stats, nil
}
