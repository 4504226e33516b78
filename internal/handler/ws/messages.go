package ws

import "encoding/json"

// inboundMessage is the envelope every client action arrives in. Data is
// decoded once into the typed payload for the action.
type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Client actions. The set is closed; anything else is rejected with an
// error event.
const (
	actionCreateSession       = "createSession"
	actionJoinSession         = "joinSession"
	actionLeaveSession        = "leaveSession"
	actionStartVoting         = "startVoting"
	actionSubmitVote          = "submitVote"
	actionRevealVotes         = "revealVotes"
	actionStartNewRound       = "startNewRound"
	actionEndSession          = "endSession"
	actionKickUser            = "kickUser"
	actionTransferScrumMaster = "transferScrumMaster"
	actionGetActiveSessions   = "getActiveSessions"
	actionReconnect           = "reconnect"
)

type userData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type createSessionData struct {
	Name string   `json:"name"`
	User userData `json:"user"`
}

type joinSessionData struct {
	SessionID string   `json:"sessionId"`
	User      userData `json:"user"`
}

type submitVoteData struct {
	Value string `json:"value"`
}

type targetUserData struct {
	UserID string `json:"userId"`
}

type reconnectData struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}
