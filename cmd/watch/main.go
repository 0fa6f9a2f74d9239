package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mindfold/backend/internal/client"
	"github.com/mindfold/backend/internal/config"
)

// watch follows one game as one player: it polls the server, triggers
// resolution and decryption when the game is ready for them, and prints every
// state change until the game reaches a terminal state.
func main() {
	godotenv.Load()
	cfg := config.Load()

	server := flag.String("server", "http://localhost:8080", "mindfold server base URL")
	player := flag.String("player", "", "player address to act as")
	gameID := flag.Uint64("game", 0, "game id to watch")
	flag.Parse()

	if *player == "" || *gameID == 0 {
		log.Fatal("both -player and -game are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.WatchPollIntervalSecs) * time.Second
	watcher := client.NewWatcher(client.NewHTTPLedger(*server, *player), *player, interval)

	log.Printf("Watching game %d as %s (poll every %s)", *gameID, *player, interval)

	for update := range watcher.Watch(ctx, *gameID) {
		if update.Err != nil {
			log.Fatalf("Game %d: %v", update.GameID, update.Err)
		}

		log.Printf("Game %d: status=%s outcome_ready=%v decrypted=%v",
			update.GameID, update.Status, update.OutcomeReady, update.Decrypted)

		if update.Result != nil {
			log.Printf("Game %d result: moveA=%d moveB=%d outcome=%d",
				update.GameID, update.Result.MoveA, update.Result.MoveB, update.Result.Outcome)
		}
		if update.Terminal {
			return
		}
	}
}
