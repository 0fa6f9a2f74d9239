package client

import (
	"sync"

	"github.com/mindfold/backend/internal/ledger"
)

// Result is a locally cached decrypted verdict
type Result struct {
	MoveA   uint8 `json:"move_a"`
	MoveB   uint8 `json:"move_b"`
	Outcome uint8 `json:"outcome"`
}

// ResultCache holds decrypted results per game. Decrypted data is monotonic:
// once cached, a later fetch that lacks the decrypted fields (stale read,
// race) never clears it.
type ResultCache struct {
	results map[uint64]Result
	mu      sync.RWMutex
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[uint64]Result)}
}

// Merge folds a fetched game view into the cache and returns the cached
// result, if any. Views without decrypted data leave the cache untouched.
func (c *ResultCache) Merge(game ledger.Game) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if game.Decrypted {
		c.results[game.ID] = Result{
			MoveA:   game.DecryptedMoveA,
			MoveB:   game.DecryptedMoveB,
			Outcome: game.DecryptedOutcome,
		}
	}
	result, exists := c.results[game.ID]
	return result, exists
}

// Get returns the cached result for a game, if any
func (c *ResultCache) Get(gameID uint64) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, exists := c.results[gameID]
	return result, exists
}
