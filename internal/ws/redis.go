package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/mindfold/backend/internal/ledger"
)

// StartEventSubscriber subscribes to the ledger's game_events channel and
// fans incoming events out to connected websocket clients
func StartEventSubscriber(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, ledger.EventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] game_events subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload struct {
					Type   string `json:"type"`
					GameID uint64 `json:"game_id"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					log.Printf("[WS] invalid event payload: %v", err)
					continue
				}
				GameHub.Broadcast(payload.GameID, []byte(msg.Payload))
			}
		}
	}()
}
