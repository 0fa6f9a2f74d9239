package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mindfold/backend/internal/api/handlers"
	"github.com/mindfold/backend/internal/config"
	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
	"github.com/mindfold/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, ldg *ledger.Ledger, cp *fhe.Coprocessor, cfg *config.Config) {
	// CORS middleware for browser clients
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Player-Address")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/constants", handlers.Constants(ldg))

		// Game ledger operations
		game := v1.Group("/game")
		{
			game.POST("", handlers.CreateGame(ldg, cp))
			game.GET("/:id", handlers.GetGame(ldg))
			game.POST("/:id/move", handlers.SubmitMove(ldg, cp))
			game.POST("/:id/resolve", handlers.ResolveGame(ldg))
			game.POST("/:id/cancel", handlers.CancelExpiredGame(ldg))
			game.POST("/:id/request-decryption", handlers.RequestGameDecryption(ldg))
		}

		// Player index
		v1.GET("/player/:address/games", handlers.GetPlayerGames(ldg))

		// User decryption flow
		decrypt := v1.Group("/decrypt")
		{
			decrypt.POST("/authorize", handlers.AuthorizeDecryption(ldg, cfg))
			decrypt.POST("", handlers.UserDecrypt(ldg, cp, cfg))
		}

		// Event stream
		v1.GET("/events/ws", func(c *gin.Context) { ws.HandleWebSocket(c) })
	}
}
