package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GameLister exposes the ledger query behind the health check.
type GameLister interface {
	ListUnreconciledFinished(ctx context.Context) ([]uuid.UUID, error)
}

// HealthStats summarizes finished games still holding unattributed events.
type HealthStats struct {
	Unreconciled int         `json:"unreconciled"`
	GameIDs      []uuid.UUID `json:"game_ids,omitempty"`
}

// CheckHealth returns the finished games that still need reconciliation.
// Run periodically so dropped recordings surface to operators instead of
// silently skewing ratings.
func CheckHealth(ctx context.Context, games GameLister) (*HealthStats, error) {
	ids, err := games.ListUnreconciledFinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled games: %w", err)
	}

	return &HealthStats{
		Unreconciled: len(ids),
		GameIDs:      ids,
	}, nil
}
