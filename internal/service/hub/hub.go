// Package hub fans registry events out to websocket subscribers. It keeps
// one topic per session plus a global directory topic, and tags each
// connection with the (user, session) pair it represents once joined.
package hub

import (
	"log"
	"sync"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
)

const kickedMessage = "you have been removed from the session"

type identity struct {
	userID    string
	sessionID string
}

// Hub tracks live connections and routes broadcast events. Publish satisfies
// registry.Sink: it is called while the registry lock is held and only
// enqueues to per-client buffers, never blocking and never calling back
// into the registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]identity
	rooms   map[string]map[*Client]struct{}
}

// New builds an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[*Client]identity),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection to the directory topic.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = identity{}
	h.mu.Unlock()
}

// Unregister drops the connection entirely and reports the (userID,
// sessionID) it was tagged with, so the caller can route the disconnect to
// the registry. The send queue is closed here; WritePump exits on it.
func (h *Hub) Unregister(c *Client) (userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.clients[c]
	if !ok {
		return "", ""
	}
	delete(h.clients, c)
	h.detachLocked(c, id.sessionID)
	close(c.send)
	return id.userID, id.sessionID
}

// Join tags the connection and subscribes it to the session topic.
func (h *Hub) Join(c *Client, userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[c]; ok && old.sessionID != "" {
		h.detachLocked(c, old.sessionID)
	}
	h.clients[c] = identity{userID: userID, sessionID: sessionID}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
}

// Leave clears the connection's tag ahead of an explicit leave, so the
// departing client does not receive its own removal broadcasts. The
// previous identity is returned.
func (h *Hub) Leave(c *Client) (userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.clients[c]
	if !ok || id.sessionID == "" {
		return "", ""
	}
	h.detachLocked(c, id.sessionID)
	h.clients[c] = identity{}
	return id.userID, id.sessionID
}

// Identity reports the (userID, sessionID) tag for the connection.
func (h *Hub) Identity(c *Client) (userID, sessionID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id := h.clients[c]
	return id.userID, id.sessionID
}

// Publish routes one registry event. Directory events go to every
// connection; everything else goes to the session topic. Session teardown
// and kicks additionally detach the affected connections.
func (h *Hub) Publish(evt session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case evt.Type == session.EventActiveSessions:
		for c := range h.clients {
			c.enqueue(evt)
		}
	case evt.SessionID != "":
		for c := range h.rooms[evt.SessionID] {
			c.enqueue(evt)
		}
		switch evt.Type {
		case session.EventUserLeft:
			h.kickLocked(evt.SessionID, evt.UserID)
		case session.EventSessionEnded:
			h.closeRoomLocked(evt.SessionID)
		}
	}
}

// kickLocked detaches any connection in the room still tagged with the
// removed user. A self-leave has already cleared its tag via Leave, so only
// kicked connections match here.
func (h *Hub) kickLocked(sessionID, userID string) {
	for c := range h.rooms[sessionID] {
		if id := h.clients[c]; id.userID == userID {
			c.enqueue(session.Event{Type: session.EventError, Reason: kickedMessage})
			h.detachLocked(c, sessionID)
			h.clients[c] = identity{}
		}
	}
}

func (h *Hub) closeRoomLocked(sessionID string) {
	for c := range h.rooms[sessionID] {
		h.clients[c] = identity{}
	}
	delete(h.rooms, sessionID)
}

func (h *Hub) detachLocked(c *Client, sessionID string) {
	if sessionID == "" {
		return
	}
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// RoomSize reports how many connections are subscribed to a session topic.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func dropLog(evt session.Event) {
	log.Printf("[hub] dropping event %s for slow client", evt.Type)
}
