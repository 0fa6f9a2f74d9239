package client

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/mindfold/backend/internal/ledger"
)

// GameLedger is the slice of the ledger the watcher talks to. The real ledger
// satisfies it; tests substitute a fake.
type GameLedger interface {
	GetGame(gameID uint64) (ledger.Game, error)
	ResolveGame(caller string, gameID uint64) error
	RequestGameDecryption(caller string, gameID uint64) (string, error)
}

// Update is one observation of a watched game. Result is set once the
// decrypted verdict is known (possibly from the sticky local cache).
type Update struct {
	GameID       uint64         `json:"game_id"`
	Status       ledger.Status  `json:"status"`
	OutcomeReady bool           `json:"outcome_ready"`
	Decrypted    bool           `json:"decrypted"`
	Result       *Result        `json:"result,omitempty"`
	Terminal     bool           `json:"terminal"`
	Err          error          `json:"-"`
}

// Watcher reconciles on-ledger game state with a participant's local view: it
// polls, nudges resolution and decryption at the right moments, and stops on
// terminal states. One Watch call runs one loop per game.
type Watcher struct {
	ldg      GameLedger
	player   string
	interval time.Duration
	cache    *ResultCache
}

// NewWatcher creates a watcher acting as the given participant
func NewWatcher(ldg GameLedger, player string, interval time.Duration) *Watcher {
	return &Watcher{
		ldg:      ldg,
		player:   player,
		interval: interval,
		cache:    NewResultCache(),
	}
}

// Cache exposes the sticky result cache
func (w *Watcher) Cache() *ResultCache {
	return w.cache
}

// Watch polls a game until it reaches a terminal state for this loop:
// cancelled, decrypted, or a hard error. Cancel the context to stop early;
// the loop leaks no timers.
func (w *Watcher) Watch(ctx context.Context, gameID uint64) <-chan Update {
	updates := make(chan Update, 8)
	go w.run(ctx, gameID, updates)
	return updates
}

func (w *Watcher) run(ctx context.Context, gameID uint64, updates chan<- Update) {
	defer close(updates)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// In-flight guards: ledger calls are submit-and-await round-trips, so
	// they run off the poll loop and must not be re-entered while pending.
	var resolveInFlight, decryptInFlight atomic.Bool

	for {
		if done := w.poll(ctx, gameID, updates, &resolveInFlight, &decryptInFlight); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one reconciliation step; it reports whether the loop is finished
func (w *Watcher) poll(ctx context.Context, gameID uint64, updates chan<- Update, resolveInFlight, decryptInFlight *atomic.Bool) bool {
	game, err := w.ldg.GetGame(gameID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrUnauthorized) {
			// Hard stop: this is not a game we can follow
			w.emit(ctx, updates, Update{GameID: gameID, Terminal: true, Err: err})
			return true
		}
		// Transient (network blip): retry on the next tick
		log.Printf("[WATCH] Game %d: poll failed, will retry: %v", gameID, err)
		return false
	}

	result, haveResult := w.cache.Merge(game)

	update := Update{
		GameID:       game.ID,
		Status:       game.Status,
		OutcomeReady: game.OutcomeReady,
		Decrypted:    game.Decrypted,
	}
	if haveResult {
		update.Result = &result
	}

	switch {
	case game.Status == ledger.StatusCancelled:
		update.Terminal = true
		w.emit(ctx, updates, update)
		return true

	case game.Decrypted:
		// Cleartexts fetched and cached; nothing left to reconcile
		update.Terminal = true
		w.emit(ctx, updates, update)
		return true

	case game.MoveASubmitted && game.MoveBSubmitted && !game.OutcomeReady:
		// Either participant may resolve; losing the race is harmless
		if resolveInFlight.CompareAndSwap(false, true) {
			go func() {
				defer resolveInFlight.Store(false)
				if err := w.ldg.ResolveGame(w.player, game.ID); err != nil && !errors.Is(err, ledger.ErrAlreadyResolved) {
					log.Printf("[WATCH] Game %d: resolve attempt failed: %v", game.ID, err)
				}
			}()
		}

	case game.OutcomeReady && !game.Decrypted:
		// Actively ask the oracle; redundant requests collapse ledger-side
		if decryptInFlight.CompareAndSwap(false, true) {
			go func() {
				defer decryptInFlight.Store(false)
				if _, err := w.ldg.RequestGameDecryption(w.player, game.ID); err != nil && !errors.Is(err, ledger.ErrAlreadyDecrypted) {
					log.Printf("[WATCH] Game %d: decryption request failed: %v", game.ID, err)
				}
			}()
		}
	}

	w.emit(ctx, updates, update)
	return false
}

func (w *Watcher) emit(ctx context.Context, updates chan<- Update, update Update) {
	select {
	case updates <- update:
	case <-ctx.Done():
	}
}
