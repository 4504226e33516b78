// Package ws carries the persistent event channel. Each connection is
// tagged with the (user, session) it represents once joined, so a dropped
// transport can be routed to the registry's disconnect path — which pauses
// rather than removes — while an explicit leave removes membership.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/hub"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 8 * 1024
)

// Handler upgrades connections and dispatches inbound actions onto the
// registry.
type Handler struct {
	reg      *registry.Registry
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(reg *registry.Registry, h *hub.Hub) *Handler {
	return &Handler{
		reg: reg,
		hub: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := hub.NewClient(conn)
	h.hub.Register(client)
	go client.WritePump()

	h.readLoop(client, conn)

	// A connection that vanishes without an explicit leave is a transport
	// drop: keep membership and let the pause/grace machinery take over.
	userID, sessionID := h.hub.Unregister(client)
	if userID != "" && sessionID != "" {
		h.reg.MarkDisconnected(sessionID, userID)
	}
}

func (h *Handler) readLoop(client *hub.Client, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		h.dispatch(client, msg)
	}
}

func (h *Handler) dispatch(client *hub.Client, msg inboundMessage) {
	switch msg.Type {
	case actionCreateSession:
		h.onCreateSession(client, msg.Data)
	case actionJoinSession:
		h.onJoinSession(client, msg.Data)
	case actionLeaveSession:
		h.onLeaveSession(client)
	case actionStartVoting, actionStartNewRound:
		h.onStartVoting(client)
	case actionSubmitVote:
		h.onSubmitVote(client, msg.Data)
	case actionRevealVotes:
		h.onRevealVotes(client)
	case actionEndSession:
		h.onEndSession(client)
	case actionKickUser:
		h.onKickUser(client, msg.Data)
	case actionTransferScrumMaster:
		h.onTransferScrumMaster(client, msg.Data)
	case actionGetActiveSessions:
		client.Send(model.Event{Type: model.EventActiveSessions, Directory: h.reg.ActiveSessions()})
	case actionReconnect:
		h.onReconnect(client, msg.Data)
	default:
		sendError(client, "unknown message type")
	}
}

func (h *Handler) onCreateSession(client *hub.Client, data json.RawMessage) {
	var payload createSessionData
	if err := json.Unmarshal(data, &payload); err != nil {
		sendError(client, "malformed createSession payload")
		return
	}
	user, ok := toUser(payload.User)
	name := strings.TrimSpace(payload.Name)
	if name == "" || !ok {
		sendError(client, "session name and user identity are required")
		return
	}

	snap, err := h.reg.CreateSession(name, user)
	if err != nil {
		sendError(client, err.Error())
		return
	}
	h.hub.Join(client, user.ID, snap.ID)
	client.Send(model.Event{Type: model.EventSessionUpdated, SessionID: snap.ID, Session: &snap})
}

func (h *Handler) onJoinSession(client *hub.Client, data json.RawMessage) {
	var payload joinSessionData
	if err := json.Unmarshal(data, &payload); err != nil {
		sendError(client, "malformed joinSession payload")
		return
	}
	user, ok := toUser(payload.User)
	if payload.SessionID == "" || !ok {
		sendError(client, "session id and user identity are required")
		return
	}

	snap, err := h.reg.JoinSession(payload.SessionID, user)
	if err != nil {
		sendError(client, err.Error())
		return
	}
	h.hub.Join(client, user.ID, snap.ID)
	client.Send(model.Event{Type: model.EventSessionUpdated, SessionID: snap.ID, Session: &snap})
}

func (h *Handler) onLeaveSession(client *hub.Client) {
	userID, sessionID := h.hub.Leave(client)
	if userID == "" {
		sendError(client, "not in a session")
		return
	}
	if _, err := h.reg.RemoveUser(sessionID, userID); err != nil {
		log.Printf("[ws] leave %s/%s: %v", sessionID, userID, err)
	}
}

func (h *Handler) onStartVoting(client *hub.Client) {
	_, sessionID, ok := h.requireScrumMaster(client)
	if !ok {
		return
	}
	if _, err := h.reg.StartVotingRound(sessionID); err != nil {
		sendError(client, err.Error())
	}
}

func (h *Handler) onSubmitVote(client *hub.Client, data json.RawMessage) {
	userID, sessionID := h.hub.Identity(client)
	if sessionID == "" {
		sendError(client, "not in a session")
		return
	}
	var payload submitVoteData
	if err := json.Unmarshal(data, &payload); err != nil {
		sendError(client, "malformed submitVote payload")
		return
	}

	if err := h.reg.SubmitVote(sessionID, userID, model.Value(payload.Value)); err != nil {
		sendError(client, err.Error())
	}
}

func (h *Handler) onRevealVotes(client *hub.Client) {
	_, sessionID, ok := h.requireScrumMaster(client)
	if !ok {
		return
	}
	if _, _, err := h.reg.RevealVotes(sessionID); err != nil {
		sendError(client, err.Error())
	}
}

func (h *Handler) onEndSession(client *hub.Client) {
	_, sessionID, ok := h.requireScrumMaster(client)
	if !ok {
		return
	}
	h.reg.EndSession(sessionID)
}

func (h *Handler) onKickUser(client *hub.Client, data json.RawMessage) {
	_, sessionID, ok := h.requireScrumMaster(client)
	if !ok {
		return
	}
	var payload targetUserData
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == "" {
		sendError(client, "malformed kickUser payload")
		return
	}

	if _, err := h.reg.RemoveUser(sessionID, payload.UserID); err != nil {
		sendError(client, err.Error())
	}
}

func (h *Handler) onTransferScrumMaster(client *hub.Client, data json.RawMessage) {
	userID, sessionID := h.hub.Identity(client)
	if sessionID == "" {
		sendError(client, "not in a session")
		return
	}
	var payload targetUserData
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == "" {
		sendError(client, "malformed transferScrumMaster payload")
		return
	}

	if _, err := h.reg.TransferScrumMaster(sessionID, userID, payload.UserID); err != nil {
		sendError(client, err.Error())
	}
}

func (h *Handler) onReconnect(client *hub.Client, data json.RawMessage) {
	var payload reconnectData
	if err := json.Unmarshal(data, &payload); err != nil || payload.SessionID == "" || payload.UserID == "" {
		sendError(client, "malformed reconnect payload")
		return
	}

	snap, ok := h.reg.ReconnectUser(payload.SessionID, payload.UserID)
	if !ok {
		sendError(client, "session not found")
		return
	}
	h.hub.Join(client, payload.UserID, payload.SessionID)
	client.Send(model.Event{Type: model.EventSessionUpdated, SessionID: snap.ID, Session: snap})
}

// requireScrumMaster resolves the caller's identity and verifies it holds
// the role, replying with an error event otherwise.
func (h *Handler) requireScrumMaster(client *hub.Client) (userID, sessionID string, ok bool) {
	userID, sessionID = h.hub.Identity(client)
	if sessionID == "" {
		sendError(client, "not in a session")
		return "", "", false
	}
	smID, exists := h.reg.ScrumMasterID(sessionID)
	if !exists {
		sendError(client, "session not found")
		return "", "", false
	}
	if smID != userID {
		sendError(client, "only the Scrum Master can perform this action")
		return "", "", false
	}
	return userID, sessionID, true
}

func toUser(u userData) (model.User, bool) {
	id := strings.TrimSpace(u.ID)
	name := strings.TrimSpace(u.Name)
	if id == "" || name == "" {
		return model.User{}, false
	}
	return model.User{ID: id, Name: name, Avatar: u.Avatar}, true
}

func sendError(client *hub.Client, message string) {
	client.Send(model.Event{Type: model.EventError, Reason: message})
}
