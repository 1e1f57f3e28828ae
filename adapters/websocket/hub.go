package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

// Hub tracks connected clients per session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.sessionID] = set
	}
	set[client] = struct{}{}
	log.WithCtx(client.ctx).Debug("New client registered", zap.Int("viewers", len(set)))
}

// Unregister removes a client from the hub and closes it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if set, ok := h.clients[client.sessionID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.sessionID)
		}
	}
	h.mu.Unlock()

	client.Close()
	log.WithCtx(client.ctx).Debug("Client unregistered")
}

// SendToSession delivers f to every viewer of sessionID and returns how many
// accepted it.
func (h *Hub) SendToSession(sessionID string, f Frame) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[sessionID]))
	for client := range h.clients[sessionID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if err := client.Deliver(f); err == nil {
			delivered++
		}
	}
	return delivered
}

// CloseSession disconnects every viewer of sessionID after their queued
// frames are written.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	set := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for client := range set {
		client.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// IsSessionWatched reports whether sessionID has at least one viewer.
func (h *Hub) IsSessionWatched(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID]) > 0
}
