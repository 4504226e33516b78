// Package session exposes the registry over the request/response surface.
// The caller's identity is asserted through the X-User-ID header; role
// checks compare it against the session's Scrum Master.
package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	model "github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/pkg/utils"
)

// UserIDHeader carries the self-asserted caller identity.
const UserIDHeader = "X-User-ID"

// Handler serves the session REST routes.
type Handler struct {
	reg *registry.Registry
}

// New creates the REST handler.
func New(reg *registry.Registry) *Handler {
	return &Handler{reg: reg}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleRename)
			r.Delete("/", h.handleEnd)
			r.Post("/users", h.handleJoin)
			r.Delete("/users/{userID}", h.handleRemoveUser)
			r.Patch("/users/{userID}", h.handleReconnect)
			r.Get("/voting", h.handleVotingStatus)
			r.Post("/voting", h.handleStartVoting)
			r.Patch("/voting", h.handleSubmitVote)
			r.Post("/voting/reveal", h.handleReveal)
			r.Post("/transfer", h.handleTransfer)
		})
	})
}

type userPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (p userPayload) toUser() (model.User, bool) {
	id := strings.TrimSpace(p.ID)
	name := strings.TrimSpace(p.Name)
	if id == "" || name == "" {
		return model.User{}, false
	}
	return model.User{ID: id, Name: name, Avatar: p.Avatar}, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.reg.ActiveSessions())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string      `json:"name"`
		User userPayload `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(payload.Name)
	creator, ok := payload.User.toUser()
	if name == "" || !ok {
		utils.RespondError(w, http.StatusBadRequest, "session name and user identity are required")
		return
	}

	snap, err := h.reg.CreateSession(name, creator)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	snap, ok := h.reg.GetSession(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var payload struct {
		User userPayload `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := payload.User.toUser()
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "user identity is required")
		return
	}

	snap, err := h.reg.JoinSession(sessionID, user)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	targetUserID := chi.URLParam(r, "userID")

	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	// Kicking somebody else is a Scrum Master action; leaving is not.
	if actorID != targetUserID {
		if !h.requireScrumMaster(w, sessionID, actorID) {
			return
		}
	}

	snap, err := h.reg.RemoveUser(sessionID, targetUserID)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sessionActive": snap != nil,
	})
}

func (h *Handler) handleReconnect(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	snap, ok := h.reg.ReconnectUser(sessionID, userID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session or user not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleVotingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	snap, ok := h.reg.GetSession(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if snap.CurrentRound == nil {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}

	type voterStatus struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		HasVoted bool   `json:"hasVoted"`
	}
	voters := make([]voterStatus, 0, len(snap.Users))
	for _, u := range snap.Users {
		voters = append(voters, voterStatus{UserID: u.ID, UserName: u.Name, HasVoted: u.HasVoted})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"active":       !snap.CurrentRound.IsRevealed,
		"round":        snap.CurrentRound,
		"votingStatus": voters,
	})
}

func (h *Handler) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	if !h.requireScrumMaster(w, sessionID, actorID) {
		return
	}

	round, err := h.reg.StartVotingRound(sessionID)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{"round": round})
}

func (h *Handler) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value := model.Value(payload.Value)
	if !value.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "invalid vote value")
		return
	}

	if err := h.reg.SubmitVote(sessionID, actorID, value); err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": actorID,
		"value":  value,
	})
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	if !h.requireScrumMaster(w, sessionID, actorID) {
		return
	}

	votes, stats, err := h.reg.RevealVotes(sessionID)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"votes":      votes,
		"statistics": stats,
	})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	var payload struct {
		NewScrumMasterID string `json:"newScrumMasterId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.NewScrumMasterID == "" {
		utils.RespondError(w, http.StatusBadRequest, "newScrumMasterId is required")
		return
	}

	snap, err := h.reg.TransferScrumMaster(sessionID, actorID, payload.NewScrumMasterID)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	if !h.requireScrumMaster(w, sessionID, actorID) {
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.reg.RenameSession(sessionID, strings.TrimSpace(payload.Name))
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	if !h.requireScrumMaster(w, sessionID, actorID) {
		return
	}

	h.reg.EndSession(sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "session ended"})
}

// requireScrumMaster writes the failure response itself and reports whether
// the caller holds the role.
func (h *Handler) requireScrumMaster(w http.ResponseWriter, sessionID, actorID string) bool {
	smID, ok := h.reg.ScrumMasterID(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return false
	}
	if smID != actorID {
		utils.RespondError(w, http.StatusUnauthorized, "only the Scrum Master can perform this action")
		return false
	}
	return true
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user id required in "+UserIDHeader+" header")
		return "", false
	}
	return id, true
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid session id format")
		return "", false
	}
	return sessionID, true
}

func respondRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound), errors.Is(err, registry.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrMaxSessionsReached), errors.Is(err, registry.ErrSessionFull):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotAuthorized):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	default:
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	}
}
