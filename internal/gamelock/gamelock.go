// Package gamelock serializes ledger mutations per game. The forward
// recompute and reconciliation passes are read-modify-write sequences
// spanning several statements and must not interleave with another
// mutation on the same game.
package gamelock

import (
	"sync"

	"github.com/google/uuid"
)

// Registry hands out one mutex per game ID.
type Registry struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Acquire locks the mutex for gameID and returns the unlock function.
func (r *Registry) Acquire(gameID uuid.UUID) func() {
	r.mu.Lock()
	l, ok := r.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[gameID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
