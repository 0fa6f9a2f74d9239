package ledger

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/mindfold/backend/internal/config"
	"github.com/mindfold/backend/internal/fhe"
)

// DefaultContractAddress identifies the ledger to the encrypted-value
// substrate: encrypted inputs and decryption authorizations are bound to it.
const DefaultContractAddress = "mindfold-zen"

// Ledger is the authoritative store of all games. Every state transition runs
// under one mutex, standing in for the transaction serialization a chain
// provides: transitions are atomic and never interleave.
type Ledger struct {
	addr string
	cp   *fhe.Coprocessor
	db   *sqlx.DB
	rdb  *redis.Client
	st   *store

	invitationTimeout time.Duration
	matchTimeout      time.Duration
	oracleKey         string

	// now is replaceable in tests
	now func() time.Time

	games       map[uint64]*Game
	playerGames map[string][]uint64
	requests    map[string]*DecryptionRequest
	nextGameID  uint64
	mu          sync.RWMutex
}

// New creates a ledger backed by Postgres and Redis. Both may be nil, in which
// case the ledger runs purely in memory (used by tests).
func New(db *sqlx.DB, rdb *redis.Client, cp *fhe.Coprocessor, cfg *config.Config) *Ledger {
	return &Ledger{
		addr:              DefaultContractAddress,
		cp:                cp,
		db:                db,
		rdb:               rdb,
		st:                &store{db: db},
		invitationTimeout: time.Duration(cfg.InvitationTimeoutSecs) * time.Second,
		matchTimeout:      time.Duration(cfg.MatchTimeoutSecs) * time.Second,
		oracleKey:         cfg.OracleSigningKey,
		now:               time.Now,
		games:             make(map[uint64]*Game),
		playerGames:       make(map[string][]uint64),
		requests:          make(map[string]*DecryptionRequest),
		nextGameID:        1,
	}
}

// Address returns the contract identity encrypted inputs must be bound to
func (l *Ledger) Address() string {
	return l.addr
}

// InvitationTimeout is the window player B has to answer an invitation
func (l *Ledger) InvitationTimeout() time.Duration {
	return l.invitationTimeout
}

// MatchTimeout is the resolution window once both players are committed
func (l *Ledger) MatchTimeout() time.Duration {
	return l.matchTimeout
}

// NextGameID returns the id the next created game will get
func (l *Ledger) NextGameID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextGameID
}

// normalizeAddr canonicalizes a player address
func normalizeAddr(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// CreateGame opens a game: the caller becomes player A, supplies the encrypted
// first move, and invites the opponent as player B. Returns the new game id.
func (l *Ledger) CreateGame(caller, opponent string, move fhe.Handle, proof string) (uint64, error) {
	caller = normalizeAddr(caller)
	opponent = normalizeAddr(opponent)
	if caller == "" || opponent == "" {
		return 0, ErrZeroAddress
	}
	if caller == opponent {
		return 0, ErrSelfPlay
	}
	if err := l.cp.VerifyInput(move, l.addr, caller, proof); err != nil {
		return 0, fhe.ErrInvalidCiphertext
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	game := &Game{
		ID:             l.nextGameID,
		PlayerA:        caller,
		PlayerB:        opponent,
		CreatedAt:      now,
		Deadline:       now.Add(l.invitationTimeout),
		Status:         StatusWaitingForOpponent,
		MoveA:          move,
		MoveASubmitted: true,
	}
	l.nextGameID++

	l.games[game.ID] = game
	l.playerGames[caller] = append(l.playerGames[caller], game.ID)
	l.playerGames[opponent] = append(l.playerGames[opponent], game.ID)

	// Player A may always decrypt their own move
	l.cp.Allow(game.MoveA, caller)

	l.persistGame(game)
	l.st.appendPlayerGame(caller, game.ID)
	l.st.appendPlayerGame(opponent, game.ID)

	log.Printf("[LEDGER] Game %d created: %s vs %s (deadline=%s)",
		game.ID, game.PlayerA, game.PlayerB, game.Deadline.Format(time.RFC3339))

	l.publishEvent(EventGameCreated, game.ID, map[string]interface{}{
		"player_a": game.PlayerA,
		"player_b": game.PlayerB,
		"deadline": game.Deadline.Unix(),
	})

	return game.ID, nil
}

// SubmitMove records player B's encrypted move and arms the match deadline
func (l *Ledger) SubmitMove(caller string, gameID uint64, move fhe.Handle, proof string) error {
	caller = normalizeAddr(caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	game, exists := l.games[gameID]
	if !exists {
		return ErrNotFound
	}
	if caller != game.PlayerB {
		return ErrUnauthorized
	}
	if game.MoveBSubmitted {
		return ErrAlreadySubmitted
	}
	switch game.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusResolved:
		return ErrAlreadyResolved
	}
	if l.now().After(game.Deadline) {
		return ErrExpired
	}
	if err := l.cp.VerifyInput(move, l.addr, caller, proof); err != nil {
		return fhe.ErrInvalidCiphertext
	}

	game.MoveB = move
	game.MoveBSubmitted = true
	game.Status = StatusWaitingForResolution
	game.Deadline = l.now().Add(l.matchTimeout)

	l.cp.Allow(game.MoveB, caller)

	l.persistGame(game)

	log.Printf("[LEDGER] Game %d: move submitted by %s, waiting for resolution (deadline=%s)",
		game.ID, caller, game.Deadline.Format(time.RFC3339))

	l.publishEvent(EventMoveSubmitted, game.ID, map[string]interface{}{
		"player":         caller,
		"is_second_move": true,
	})

	return nil
}

// ResolveGame computes the encrypted outcome once both moves are present, or
// applies the forfeit once the match window for the opponent's first move has
// lapsed. Either participant may call it; the second caller of a race gets
// ErrAlreadyResolved and no state changes.
func (l *Ledger) ResolveGame(caller string, gameID uint64) error {
	caller = normalizeAddr(caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	game, exists := l.games[gameID]
	if !exists {
		return ErrNotFound
	}
	if !game.isParticipant(caller) {
		return ErrUnauthorized
	}
	switch game.Status {
	case StatusResolved:
		return ErrAlreadyResolved
	case StatusCancelled:
		return ErrAlreadyCancelled
	}

	var result encryptedOutcome
	forfeit := false

	if game.Status == StatusWaitingForResolution {
		var err error
		result, err = computeOutcome(l.cp, game.MoveA, game.MoveB)
		if err != nil {
			return fmt.Errorf("outcome computation failed: %w", err)
		}
	} else {
		// Only player A has moved. The opponent forfeits after the match
		// window, well before the invitation deadline would allow a cancel.
		forfeitAt := game.CreatedAt.Add(l.matchTimeout)
		if !l.now().After(forfeitAt) {
			return ErrNotResolvable
		}
		result = forfeitOutcome(l.cp)
		forfeit = true
	}

	// The four result fields are set together and never change again
	game.Outcome = result.outcome
	game.AWins = result.aWins
	game.BWins = result.bWins
	game.IsTie = result.isTie
	game.OutcomeReady = true
	game.Status = StatusResolved

	// Both participants may decrypt the moves and the verdict from here on
	for _, h := range []fhe.Handle{game.MoveA, game.MoveB, game.Outcome, game.AWins, game.BWins, game.IsTie} {
		if h == fhe.ZeroHandle {
			continue
		}
		l.cp.Allow(h, game.PlayerA)
		l.cp.Allow(h, game.PlayerB)
	}

	l.persistGame(game)

	if forfeit {
		log.Printf("[LEDGER] Game %d resolved by forfeit: %s never moved", game.ID, game.PlayerB)
		l.publishEvent(EventForfeitProcessed, game.ID, map[string]interface{}{
			"forfeiting_player": game.PlayerB,
		})
	} else {
		log.Printf("[LEDGER] Game %d resolved", game.ID)
	}

	l.publishEvent(EventGameResolved, game.ID, map[string]interface{}{
		"encrypted_outcome": game.Outcome,
		"a_wins":            game.AWins,
		"b_wins":            game.BWins,
		"is_tie":            game.IsTie,
	})

	return nil
}

// CancelExpiredGame voids an invitation the opponent never answered.
// Cancelled is terminal: no further moves or resolution are possible.
func (l *Ledger) CancelExpiredGame(caller string, gameID uint64) error {
	caller = normalizeAddr(caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	game, exists := l.games[gameID]
	if !exists {
		return ErrNotFound
	}
	if !game.isParticipant(caller) {
		return ErrUnauthorized
	}
	switch game.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusResolved, StatusWaitingForResolution:
		return ErrAlreadyResolved
	}
	if !l.now().After(game.Deadline) {
		return ErrNotExpired
	}

	game.Status = StatusCancelled

	l.persistGame(game)

	log.Printf("[LEDGER] Game %d cancelled: invitation to %s expired", game.ID, game.PlayerB)

	l.publishEvent(EventGameCancelled, game.ID, nil)

	return nil
}

// RequestGameDecryption registers an oracle round-trip for a resolved game.
// If a request is already outstanding its id is returned instead of opening a
// second one.
func (l *Ledger) RequestGameDecryption(caller string, gameID uint64) (string, error) {
	caller = normalizeAddr(caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	game, exists := l.games[gameID]
	if !exists {
		return "", ErrNotFound
	}
	if !game.isParticipant(caller) {
		return "", ErrUnauthorized
	}
	if !game.OutcomeReady {
		return "", ErrNotDecryptable
	}
	if game.Decrypted {
		return "", ErrAlreadyDecrypted
	}

	// Redundant requests from racing clients collapse onto the outstanding one
	for _, req := range l.requests {
		if req.GameID == gameID && !req.Fulfilled {
			return req.ID, nil
		}
	}

	req := &DecryptionRequest{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Handles:   []fhe.Handle{game.MoveA, game.MoveB, game.Outcome},
		CreatedAt: l.now(),
	}
	l.requests[req.ID] = req

	l.st.insertDecryptionRequest(req)

	log.Printf("[LEDGER] Game %d: decryption requested (request=%s)", gameID, req.ID)

	l.publishEvent(EventDecryptionRequested, gameID, map[string]interface{}{
		"request_id": req.ID,
	})

	return req.ID, nil
}

// OnDecryptionComplete is the oracle callback: it verifies the proof, stores
// the cleartext mirrors exactly once and flips the decrypted flag. It never
// computes outcomes and never changes the game status.
func (l *Ledger) OnDecryptionComplete(requestID string, cleartexts []uint8, proof string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, exists := l.requests[requestID]
	if !exists {
		return ErrNoHandleFound
	}
	if req.Fulfilled {
		return ErrAlreadySaved
	}
	if len(cleartexts) != len(req.Handles) {
		return ErrInvalidSignatures
	}
	if !fhe.VerifyDecryptionResult(l.oracleKey, requestID, cleartexts, proof) {
		// Request stays outstanding so the oracle can retry
		return ErrInvalidSignatures
	}

	game, exists := l.games[req.GameID]
	if !exists {
		return ErrNoHandleFound
	}
	if !game.OutcomeReady {
		return ErrNotDecryptable
	}

	game.DecryptedMoveA = cleartexts[0]
	game.DecryptedMoveB = cleartexts[1]
	game.DecryptedOutcome = cleartexts[2]
	game.Decrypted = true
	req.Fulfilled = true

	l.persistGame(game)
	l.st.markRequestFulfilled(req.ID)

	log.Printf("[LEDGER] Game %d decrypted: moveA=%d moveB=%d outcome=%d",
		game.ID, game.DecryptedMoveA, game.DecryptedMoveB, game.DecryptedOutcome)

	l.publishEvent(EventGameDecrypted, game.ID, map[string]interface{}{
		"move_a":  game.DecryptedMoveA,
		"move_b":  game.DecryptedMoveB,
		"outcome": game.DecryptedOutcome,
	})

	return nil
}

// GetGame returns a read-only copy of the full game record
func (l *Ledger) GetGame(gameID uint64) (Game, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	game, exists := l.games[gameID]
	if !exists {
		return Game{}, ErrNotFound
	}
	return *game, nil
}

// GetPlayerGames returns the ids of every game the player participates in,
// in creation order
func (l *Ledger) GetPlayerGames(player string) []uint64 {
	player = normalizeAddr(player)

	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.playerGames[player]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// PendingRequests returns copies of the unfulfilled decryption requests,
// oldest first. The oracle worker polls this.
func (l *Ledger) PendingRequests() []DecryptionRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []DecryptionRequest
	for _, req := range l.requests {
		if req.Fulfilled {
			continue
		}
		cp := *req
		cp.Handles = append([]fhe.Handle(nil), req.Handles...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// persistGame writes the game through to Postgres and snapshots it to redis
func (l *Ledger) persistGame(game *Game) {
	l.st.saveGame(game)
	l.saveSnapshot(game)
}
