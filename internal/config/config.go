package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port string

	// Game timing (seconds)
	InvitationTimeoutSecs int
	MatchTimeoutSecs      int

	// Background workers (seconds)
	OraclePollIntervalSecs int
	WatchPollIntervalSecs  int

	// Encrypted-value substrate
	CoprocessorKey   string
	InputVerifierKey string
	OracleSigningKey string

	// User decryption authorization
	DecryptJWTSecret        string
	DecryptAuthDurationDays int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/mindfold?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port: getEnv("APP_PORT", "8080"),

		// Game timing: a long invitation window for the opponent's first move,
		// then a shorter match window for resolution liveness
		InvitationTimeoutSecs: getEnvInt("INVITATION_TIMEOUT_SECONDS", 600),
		MatchTimeoutSecs:      getEnvInt("MATCH_TIMEOUT_SECONDS", 180),

		// Background workers
		OraclePollIntervalSecs: getEnvInt("ORACLE_POLL_INTERVAL_SECONDS", 2),
		WatchPollIntervalSecs:  getEnvInt("WATCH_POLL_INTERVAL_SECONDS", 3),

		// Encrypted-value substrate keys
		CoprocessorKey:   getEnv("COPROCESSOR_KEY", "dev-coprocessor-key"),
		InputVerifierKey: getEnv("INPUT_VERIFIER_KEY", "dev-input-verifier-key"),
		OracleSigningKey: getEnv("ORACLE_SIGNING_KEY", "dev-oracle-signing-key"),

		// User decryption authorization
		DecryptJWTSecret:        getEnv("DECRYPT_JWT_SECRET", "change-me-in-production"),
		DecryptAuthDurationDays: getEnvInt("DECRYPT_AUTH_DURATION_DAYS", 7),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
