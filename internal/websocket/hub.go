// Package websocket broadcasts pipeline run events to connected browser
// clients over gorilla/websocket connections.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"firmpulse/internal/operations"
)

// Message type constants on the wire.
const (
	TypeConnection = "connection"
	TypeRunEvent   = "run:event"
)

// Envelope wraps every outbound message.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	running bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	logger *slog.Logger
}

// NewHub creates a new hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start launches the hub loop. Safe to call once.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Shutdown stops the hub loop and closes all client connections.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub shut down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count))

			client.enqueue(marshalEnvelope(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop the message rather than block
					// the hub loop.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastRunEvent implements operations.Broadcaster.
func (h *Hub) BroadcastRunEvent(event operations.RunEvent) {
	h.Broadcast(marshalEnvelope(TypeRunEvent, event))
}

// Broadcast sends raw bytes to every connected client.
func (h *Hub) Broadcast(message []byte) {
	if message == nil {
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func marshalEnvelope(msgType string, data interface{}) []byte {
	b, err := json.Marshal(Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return nil
	}
	return b
}
