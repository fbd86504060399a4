package transport

import (
	"log/slog"
	"sync"
)

// Hub is the connection registry. It implements room.Sender: events pushed
// here land on the per-connection buffered channel the writePump drains, so
// delivery to one connection preserves send order.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Client
	maxConns int
}

func NewHub(maxConns int) *Hub {
	return &Hub{
		conns:    make(map[string]*Client),
		maxConns: maxConns,
	}
}

// add registers a connection, enforcing the server-wide capacity limit.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxConns > 0 && len(h.conns) >= h.maxConns {
		return false
	}
	h.conns[c.ConnectionID] = c
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if existing, ok := h.conns[c.ConnectionID]; ok && existing == c {
		delete(h.conns, c.ConnectionID)
	}
	h.mu.Unlock()
}

// Send queues data for one connection. A connection whose buffer is full is
// dropped rather than allowed to stall every other participant's broadcast.
func (h *Hub) Send(connectionID string, data []byte) {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("dropping slow connection", "connection_id", connectionID, "user_id", c.Identity.UserID)
		c.closeSlow()
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown stops every connection's write pump. Send channels are never
// closed: the media plane signals into them from its own goroutines, and a
// signal racing shutdown must land in a buffer, not on a closed channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.conns))
	for id, c := range h.conns {
		clients = append(clients, c)
		delete(h.conns, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}
