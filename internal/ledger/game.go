package ledger

import (
	"errors"
	"time"

	"github.com/mindfold/backend/internal/fhe"
)

// Status is the lifecycle state of a game. Values mirror the on-chain
// encoding, so they are stable across the API and storage.
type Status uint8

const (
	StatusWaitingForOpponent Status = iota
	StatusWaitingForResolution
	StatusResolved
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusWaitingForOpponent:
		return "WaitingForOpponent"
	case StatusWaitingForResolution:
		return "WaitingForResolution"
	case StatusResolved:
		return "Resolved"
	case StatusCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Move encoding: attack or defend, each in one of two directions
const (
	MoveAttackNorth uint8 = 0
	MoveAttackSouth uint8 = 1
	MoveDefendNorth uint8 = 2
	MoveDefendSouth uint8 = 3
)

// Outcome encoding
const (
	OutcomeTie        uint8 = 0
	OutcomePlayerAWin uint8 = 1
	OutcomePlayerBWin uint8 = 2
)

var (
	ErrNotFound         = errors.New("game not found")
	ErrUnauthorized     = errors.New("caller is not a participant")
	ErrSelfPlay         = errors.New("cannot invite yourself")
	ErrZeroAddress      = errors.New("opponent address is empty")
	ErrInvalidMove      = errors.New("move must be between 0 and 3")
	ErrAlreadySubmitted = errors.New("move already submitted")
	ErrExpired          = errors.New("deadline has passed")
	ErrNotExpired       = errors.New("deadline has not passed yet")
	ErrAlreadyResolved  = errors.New("game already resolved")
	ErrAlreadyCancelled = errors.New("game is cancelled")
	ErrNotResolvable    = errors.New("game is not ready to resolve")
	ErrNotDecryptable   = errors.New("game outcome is not ready for decryption")
	ErrAlreadyDecrypted = errors.New("game results already decrypted")

	// Oracle callback errors
	ErrNoHandleFound     = errors.New("no handles found for request id")
	ErrAlreadySaved      = errors.New("handles already saved for request id")
	ErrInvalidSignatures = errors.New("invalid oracle signatures")
)

// Game is the authoritative per-game record. Encrypted fields hold ciphertext
// handles; the decrypted mirrors are meaningless until Decrypted is true.
type Game struct {
	ID        uint64     `json:"game_id"`
	PlayerA   string     `json:"player_a"`
	PlayerB   string     `json:"player_b"`
	CreatedAt time.Time  `json:"created_at"`
	Deadline  time.Time  `json:"deadline"`
	Status    Status     `json:"status"`

	MoveA          fhe.Handle `json:"move_a"`
	MoveB          fhe.Handle `json:"move_b"`
	MoveASubmitted bool       `json:"move_a_submitted"`
	MoveBSubmitted bool       `json:"move_b_submitted"`

	OutcomeReady bool       `json:"outcome_ready"`
	Outcome      fhe.Handle `json:"outcome"`
	AWins        fhe.Handle `json:"a_wins"`
	BWins        fhe.Handle `json:"b_wins"`
	IsTie        fhe.Handle `json:"is_tie"`

	Decrypted        bool  `json:"decrypted"`
	DecryptedMoveA   uint8 `json:"decrypted_move_a"`
	DecryptedMoveB   uint8 `json:"decrypted_move_b"`
	DecryptedOutcome uint8 `json:"decrypted_outcome"`
}

// DecryptionRequest tracks one outstanding oracle round-trip. The handle list
// is fixed at registration time; cleartexts arrive in the same order.
type DecryptionRequest struct {
	ID        string       `json:"id"`
	GameID    uint64       `json:"game_id"`
	Handles   []fhe.Handle `json:"handles"`
	Fulfilled bool         `json:"fulfilled"`
	CreatedAt time.Time    `json:"created_at"`
}

// isParticipant reports whether addr is one of the two fixed players
func (g *Game) isParticipant(addr string) bool {
	return addr == g.PlayerA || addr == g.PlayerB
}
