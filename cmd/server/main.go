package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mindfold/backend/internal/api"
	"github.com/mindfold/backend/internal/config"
	"github.com/mindfold/backend/internal/database"
	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
	"github.com/mindfold/backend/internal/migrations"
	"github.com/mindfold/backend/internal/oracle"
	"github.com/mindfold/backend/internal/redis"
	"github.com/mindfold/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Initialize the encrypted-value coprocessor
	cp := fhe.NewCoprocessor(cfg.CoprocessorKey, cfg.InputVerifierKey)

	// Initialize the game ledger and reload persisted state
	ldg := ledger.New(db, rdb, cp, cfg)
	if err := ldg.Rehydrate(); err != nil {
		log.Fatalf("Failed to rehydrate ledger: %v", err)
	}

	// Start the decryption oracle worker
	worker := oracle.NewWorker(ldg, cp, cfg.OracleSigningKey)
	go worker.Start(context.Background(), time.Duration(cfg.OraclePollIntervalSecs)*time.Second)

	// Fan ledger events out to websocket clients
	ws.StartEventSubscriber(context.Background(), rdb)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, ldg, cp, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Mindfold server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
