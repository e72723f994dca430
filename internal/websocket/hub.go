// Package websocket pushes published equity ticks to dashboard clients
// over a WebSocket connection.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"equity_monitor/internal/models"
)

// TickSource provides the latest published equity tick for the greeting
// frame sent to a freshly connected client.
type TickSource interface {
	Last() (models.EquityTick, bool)
}

// Hub manages all WebSocket clients and broadcasts ticks to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	ticks      TickSource
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(ticks TickSource) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ticks:      ticks,
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Println("[WS] client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Println("[WS] client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client: drop it rather than block the hub
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastTick serializes an equity tick and sends it to all clients.
func (h *Hub) BroadcastTick(tick models.EquityTick) {
	payload, err := json.Marshal(tick)
	if err != nil {
		log.Printf("[WS] marshaling tick: %v", err)
		return
	}
	h.broadcast <- payload
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// upgrader holds the WebSocket upgrader configuration. The dashboard is
// served from the same host, so same-origin and originless requests are
// accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// ServeWs handles WebSocket requests from the peer. The latest published
// tick, when one exists, is queued before the client joins the broadcast
// set so a new dashboard renders immediately.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}

	if tick, ok := h.ticks.Last(); ok {
		if payload, err := json.Marshal(tick); err == nil {
			client.send <- payload
		}
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}
