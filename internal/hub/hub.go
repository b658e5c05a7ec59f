package hub

import (
	"encoding/json"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single subscriber connection (a seat watching a
// room). It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// Hub manages all active room streams. Public room events fan out to
// every client in the room; private events (role reveals, "you were
// blocked/healed/guarded") go only to the clients of one user.
type Hub struct {
	rooms map[uint]map[Client]uint // client -> subscribing user id
	mu    sync.RWMutex
}

// GlobalHub is the singleton instance of our Hub.
var GlobalHub = NewHub()

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uint]map[Client]uint),
	}
}

// Subscribe adds a client for a user to a specific room.
func (h *Hub) Subscribe(roomID, userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[Client]uint)
	}
	h.rooms[roomID][client] = userID
}

// Unsubscribe removes a client from a room.
func (h *Hub) Unsubscribe(roomID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[roomID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Close the channel to signal the SSE handler to stop.
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// Broadcast sends an event to all clients in a specific room.
func (h *Hub) Broadcast(roomID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	messageBytes, err := json.Marshal(event)
	if err != nil {
		return
	}
	for client := range clients {
		// Use a non-blocking send to prevent a slow client from blocking the hub.
		select {
		case client <- messageBytes:
		default:
			// Client channel is full, maybe they are disconnected or slow.
			// The unsubscribe logic will handle cleaning this up eventually.
		}
	}
}

// SendToUser sends a private event to one user's clients within a room.
func (h *Hub) SendToUser(roomID, userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	messageBytes, err := json.Marshal(event)
	if err != nil {
		return
	}
	for client, uid := range clients {
		if uid != userID {
			continue
		}
		select {
		case client <- messageBytes:
		default:
		}
	}
}
