package livereload

import (
	"sync"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// Hub manages live-reload WebSocket clients and fans change
// notifications out to them. Implements port.ReloadNotifier.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan port.ChangeSet
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *logger.Logger
}

func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan port.ChangeSet, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run owns the client set. Must run in its own goroutine.
func (h *Hub) Run() {
	h.logger.Info("Live reload hub started")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Reload client registered", "total_clients", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("Reload client unregistered", "total_clients", h.ClientCount())

		case changes := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- Message{Type: "reload", Paths: changes.Paths}:
				default:
					// Client not draining, drop it.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Reload client channel full, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastReload notifies all connected clients about changed paths.
func (h *Hub) BroadcastReload(changes port.ChangeSet) {
	select {
	case h.broadcast <- changes:
	default:
		h.logger.Warn("Reload broadcast channel full, dropping change set")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message is the wire format pushed to reload clients.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
}
