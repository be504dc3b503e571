package websocket

import (
	"context"
	"sync"

	"realtime-chat/internal/metrics"

	"github.com/gorilla/websocket"
)

// Hub keeps track of every live client so the server can close them all on
// shutdown. Fanout itself goes through the broadcast backbone.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
	empty   chan struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.ActiveConnections.WithLabelValues(c.channel).Inc()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	metrics.ActiveConnections.WithLabelValues(c.channel).Dec()
	if len(h.clients) == 0 && h.empty != nil {
		close(h.empty)
		h.empty = nil
	}
}

// Count is the number of live clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown refuses new clients, closes the live ones with "going away" and
// waits until their sessions finished cleanup or ctx ends.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	var empty chan struct{}
	if len(h.clients) > 0 {
		empty = make(chan struct{})
		h.empty = empty
	}
	h.mu.Unlock()

	for _, c := range clients {
		go c.Close(websocket.CloseGoingAway, "server shutting down")
	}
	if empty == nil {
		return nil
	}

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
