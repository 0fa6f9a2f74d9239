package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// EventsChannel is the redis pubsub channel carrying ledger events
const EventsChannel = "game_events"

// Event types, named after the on-chain log they correspond to
const (
	EventGameCreated         = "GameCreated"
	EventMoveSubmitted       = "MoveSubmitted"
	EventGameResolved        = "GameResolved"
	EventForfeitProcessed    = "ForfeitProcessed"
	EventGameCancelled       = "GameCancelled"
	EventDecryptionRequested = "DecryptionRequested"
	EventGameDecrypted       = "GameDecrypted"
)

// publishEvent publishes a ledger event to the game_events channel.
// Best-effort: event delivery is a convenience for watchers, the ledger
// record stays authoritative.
func (l *Ledger) publishEvent(eventType string, gameID uint64, fields map[string]interface{}) {
	if l.rdb == nil {
		return
	}
	payload := map[string]interface{}{
		"type":    eventType,
		"game_id": gameID,
	}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[LEDGER] Failed to marshal %s event: %v", eventType, err)
		return
	}
	if err := l.rdb.Publish(context.Background(), EventsChannel, data).Err(); err != nil {
		log.Printf("[LEDGER] Failed to publish %s event for game %d: %v", eventType, gameID, err)
	}
}

// saveSnapshot writes the game as JSON to redis for cheap reads and
// crash-inspection. Postgres remains the durable record.
func (l *Ledger) saveSnapshot(game *Game) {
	if l.rdb == nil {
		return
	}
	data, err := json.Marshal(game)
	if err != nil {
		log.Printf("[LEDGER] Failed to marshal game %d snapshot: %v", game.ID, err)
		return
	}
	key := fmt.Sprintf("game:%d", game.ID)
	if err := l.rdb.Set(context.Background(), key, data, 0).Err(); err != nil {
		log.Printf("[LEDGER] Failed to save game %d snapshot to redis: %v", game.ID, err)
	}
}
