package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
)

// callerAddress extracts the acting player from the request. Chain-style
// signature auth is out of scope; the header stands in for msg.sender.
// Addresses are canonicalized here so input proofs and ACL grants always
// see the same form the ledger stores.
func callerAddress(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.GetHeader("X-Player-Address")))
}

// gameIDParam parses the :id path parameter
func gameIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return id, true
}

// statusForError maps ledger errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrNoHandleFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAlreadySubmitted),
		errors.Is(err, ledger.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrAlreadyCancelled),
		errors.Is(err, ledger.ErrAlreadyDecrypted),
		errors.Is(err, ledger.ErrAlreadySaved):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidSignatures), errors.Is(err, fhe.ErrInvalidAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// CreateGame invites an opponent with the caller's encrypted first move
func CreateGame(ldg *ledger.Ledger, cp *fhe.Coprocessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Player-Address header required"})
			return
		}

		var req struct {
			Opponent string `json:"opponent" binding:"required"`
			Move     *int   `json:"move" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "opponent and move required"})
			return
		}
		if *req.Move < 0 || *req.Move > 3 {
			c.JSON(http.StatusBadRequest, gin.H{"error": ledger.ErrInvalidMove.Error()})
			return
		}

		// Encrypt the move client-side of the ledger boundary: the ledger
		// only ever sees the handle and its proof
		handle, proof := cp.CreateEncryptedInput(ldg.Address(), caller, uint8(*req.Move))

		gameID, err := ldg.CreateGame(caller, req.Opponent, handle, proof)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		log.Printf("[API] Game %d created by %s", gameID, caller)
		c.JSON(http.StatusCreated, gin.H{"game_id": gameID})
	}
}

// SubmitMove records the invited opponent's encrypted move
func SubmitMove(ldg *ledger.Ledger, cp *fhe.Coprocessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Player-Address header required"})
			return
		}
		gameID, ok := gameIDParam(c)
		if !ok {
			return
		}

		var req struct {
			Move *int `json:"move" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "move required"})
			return
		}
		if *req.Move < 0 || *req.Move > 3 {
			c.JSON(http.StatusBadRequest, gin.H{"error": ledger.ErrInvalidMove.Error()})
			return
		}

		handle, proof := cp.CreateEncryptedInput(ldg.Address(), caller, uint8(*req.Move))

		if err := ldg.SubmitMove(caller, gameID, handle, proof); err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"game_id": gameID})
	}
}

// ResolveGame triggers outcome computation (or the forfeit path)
func ResolveGame(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		gameID, ok := gameIDParam(c)
		if !ok {
			return
		}

		if err := ldg.ResolveGame(caller, gameID); err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"game_id": gameID})
	}
}

// CancelExpiredGame voids an unanswered invitation
func CancelExpiredGame(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		gameID, ok := gameIDParam(c)
		if !ok {
			return
		}

		if err := ldg.CancelExpiredGame(caller, gameID); err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"game_id": gameID})
	}
}

// RequestGameDecryption opens an oracle round-trip for a resolved game
func RequestGameDecryption(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		gameID, ok := gameIDParam(c)
		if !ok {
			return
		}

		requestID, err := ldg.RequestGameDecryption(caller, gameID)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"game_id": gameID, "request_id": requestID})
	}
}

// GetGame returns the full game view, encrypted handles included
func GetGame(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, ok := gameIDParam(c)
		if !ok {
			return
		}

		game, err := ldg.GetGame(gameID)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, game)
	}
}

// GetPlayerGames lists a player's game ids in creation order
func GetPlayerGames(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := c.Param("address")
		c.JSON(http.StatusOK, gin.H{"player": player, "games": ldg.GetPlayerGames(player)})
	}
}

// Constants exposes the public timing parameters
func Constants(ldg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"invitation_timeout_seconds": int(ldg.InvitationTimeout().Seconds()),
			"match_timeout_seconds":      int(ldg.MatchTimeout().Seconds()),
			"next_game_id":               ldg.NextGameID(),
		})
	}
}
