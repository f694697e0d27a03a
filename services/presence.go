// services/presence.go
package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Availability states tracked per connected player
const (
	StateIdle      = "idle"
	StateSearching = "searching"
	StateInSession = "in_session"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// Notifier is how session managers push events to player channels
type Notifier interface {
	SendTo(userID string, event string, payload any)
	Fanout(userIDs []string, event string, payload any)
}

// Client is one connected player's channel. Writes go through a buffered send
// queue drained by a single writer goroutine, so managers never block on a
// slow socket.
type Client struct {
	UserID string
	Name   string
	Rating int

	state  string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Hub is the presence registry: at most one entry per identity, every status
// change re-broadcasts the full presence list (simplicity over efficiency).
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Connect registers the identity's channel. A reconnect replaces the prior
// entry; the stale connection is closed.
func (h *Hub) Connect(userID, name string, rating int, conn *websocket.Conn) *Client {
	c := &Client{
		UserID: userID,
		Name:   name,
		Rating: rating,
		state:  StateIdle,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if prior, ok := h.clients[userID]; ok {
		h.closeLocked(prior)
	}
	h.clients[userID] = c
	h.mu.Unlock()

	if conn != nil {
		go c.writePump()
	}

	h.BroadcastSnapshot()
	return c
}

// Disconnect clears presence for the client. It does NOT abandon any live
// match or raid the player is in; sessions settle on their own timers.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.UserID]
	if !ok || current != c {
		// a reconnect already replaced this entry
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.UserID)
	h.closeLocked(c)
	h.mu.Unlock()

	h.BroadcastSnapshot()
}

func (h *Hub) closeLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SetStatus updates availability and triggers the full-list broadcast
func (h *Hub) SetStatus(userID, state string) {
	h.mu.Lock()
	c, ok := h.clients[userID]
	if ok {
		c.state = state
	}
	h.mu.Unlock()

	if ok {
		h.BroadcastSnapshot()
	}
}

// IsOnline reports whether an identity currently has a presence entry
func (h *Hub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[userID]
	return ok
}

// Snapshot returns the current presence list
func (h *Hub) Snapshot() []PresenceInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := make([]PresenceInfo, 0, len(h.clients))
	for _, c := range h.clients {
		players = append(players, PresenceInfo{
			UserID: c.UserID,
			Name:   c.Name,
			Rating: c.Rating,
			State:  c.state,
		})
	}
	return players
}

// BroadcastSnapshot pushes the full presence list to every connected channel
func (h *Hub) BroadcastSnapshot() {
	snapshot := PresenceSnapshotPayload{Players: h.Snapshot()}
	data, err := encodeEvent("presence_snapshot", snapshot)
	if err != nil {
		log.Printf("presence: failed to encode snapshot: %v", err)
		return
	}

	h.mu.Lock()
	for _, c := range h.clients {
		h.pushLocked(c, data)
	}
	h.mu.Unlock()
}

// SendTo delivers one event to one player's channel. Unknown or disconnected
// players are silently skipped; presence is the authority on who is reachable.
func (h *Hub) SendTo(userID string, event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("presence: failed to encode %s for %s: %v", event, userID, err)
		return
	}

	h.mu.Lock()
	if c, ok := h.clients[userID]; ok {
		h.pushLocked(c, data)
	}
	h.mu.Unlock()
}

// Fanout delivers one event to a set of players
func (h *Hub) Fanout(userIDs []string, event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("presence: failed to encode %s: %v", event, err)
		return
	}

	h.mu.Lock()
	for _, id := range userIDs {
		if c, ok := h.clients[id]; ok {
			h.pushLocked(c, data)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) pushLocked(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// the writer is stalled; dropping beats blocking every other room
		log.Printf("presence: send buffer full for %s, dropping message", c.UserID)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("presence: write to %s failed: %v", c.UserID, err)
			return
		}
	}
}

func encodeEvent(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: event, Payload: body})
}
