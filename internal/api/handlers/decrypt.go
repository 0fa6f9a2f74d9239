package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/backend/internal/config"
	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
)

// AuthorizeDecryption issues a time-bounded user-decryption token binding the
// caller to this ledger
func AuthorizeDecryption(ldg *ledger.Ledger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Player-Address header required"})
			return
		}

		token, err := fhe.SignDecryptionAuth(cfg.DecryptJWTSecret, caller, ldg.Address(), cfg.DecryptAuthDurationDays)
		if err != nil {
			log.Printf("[API] Failed to sign decryption auth for %s: %v", caller, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":         token,
			"contract":      ldg.Address(),
			"duration_days": cfg.DecryptAuthDurationDays,
		})
	}
}

// UserDecrypt reveals cleartexts for handles the caller is allowed on,
// under a valid authorization token
func UserDecrypt(ldg *ledger.Ledger, cp *fhe.Coprocessor, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerAddress(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Player-Address header required"})
			return
		}

		var req struct {
			Token   string   `json:"token" binding:"required"`
			Handles []string `json:"handles" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and handles required"})
			return
		}

		if err := fhe.VerifyDecryptionAuth(cfg.DecryptJWTSecret, req.Token, caller, ldg.Address()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		handles := make([]fhe.Handle, 0, len(req.Handles))
		for _, h := range req.Handles {
			handles = append(handles, fhe.Handle(h))
		}

		values, err := cp.UserDecrypt(handles, caller)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		out := make(map[string]uint8, len(values))
		for h, v := range values {
			out[string(h)] = v
		}
		c.JSON(http.StatusOK, gin.H{"cleartexts": out})
	}
}
