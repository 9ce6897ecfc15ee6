package chat

import (
	"encoding/json"
	"log"
	"sync"
)

// Broadcaster fans an event out to every active connection of a user.
type Broadcaster interface {
	SendToUser(userID string, evt Event)
}

// Hub is the connection registry: a concurrency-safe map from user id to
// that user's live connections. Registration and deregistration are guarded
// by the same lock as delivery, so a connection is either fully present or
// fully absent.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			c.closeSend()
		}
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
}

// ConnectionCount reports how many live connections a user has.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// SendToUser delivers evt to all of userID's active connections. Delivery
// is best-effort: a connection whose send buffer is full is dropped rather
// than allowed to stall everyone behind it.
func (h *Hub) SendToUser(userID string, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("hub: failed to encode %s event: %v", evt.Type, err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.conns[userID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("hub: dropping slow connection for user %s", userID)
		h.Unregister(c)
	}
}
