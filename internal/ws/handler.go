package ws

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Client represents a connected WebSocket client. A gameID of 0 subscribes
// to every ledger event.
type Client struct {
	conn   *websocket.Conn
	gameID uint64
	send   chan []byte
}

// Hub maintains the set of active clients
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

// GameHub is the global event hub
var GameHub = NewHub()

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Broadcast sends an event payload to every client watching the game (or all games)
func (h *Hub) Broadcast(gameID uint64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.gameID != 0 && client.gameID != gameID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Client's buffer is full
			log.Printf("[WS] send buffer full for game %d subscriber, dropping event", client.gameID)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// HandleWebSocket upgrades the connection and streams ledger events.
// An optional game_id query parameter narrows the stream to one game.
func HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	gameID, _ := strconv.ParseUint(c.Query("game_id"), 10, 64)

	client := &Client{
		conn:   conn,
		gameID: gameID,
		send:   make(chan []byte, 32),
	}
	GameHub.register(client)

	go client.writePump()
	go client.readPump()
}

// writePump writes events to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel, connection is being cleaned up
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection and unregisters on close
func (c *Client) readPump() {
	defer func() {
		GameHub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
