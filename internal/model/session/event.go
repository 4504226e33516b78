package session

// EventType names one kind of broadcast message. The set is closed: every
// type carries a fixed payload shape in Event.
type EventType string

const (
	EventSessionUpdated     EventType = "sessionUpdated"
	EventUserJoined         EventType = "userJoined"
	EventUserLeft           EventType = "userLeft"
	EventUserDisconnected   EventType = "userDisconnected"
	EventUserReconnected    EventType = "userReconnected"
	EventVotingStarted      EventType = "votingStarted"
	EventNewRoundStarted    EventType = "newRoundStarted"
	EventVoteSubmitted      EventType = "voteSubmitted"
	EventVotesRevealed      EventType = "votesRevealed"
	EventSessionEnded       EventType = "sessionEnded"
	EventScrumMasterChanged EventType = "scrumMasterChanged"
	EventSessionPaused      EventType = "sessionPaused"
	EventSessionResumed     EventType = "sessionResumed"
	EventSessionExpiring    EventType = "sessionExpiring"
	EventActiveSessions     EventType = "activeSessions"
	EventError              EventType = "error"
)

// Event is one broadcast from the registry to session subscribers. Only the
// fields relevant to the Type are set. SessionID is empty for directory
// events, which go to every connected client.
type Event struct {
	Type             EventType   `json:"type"`
	SessionID        string      `json:"sessionId,omitempty"`
	UserID           string      `json:"userId,omitempty"`
	User             *User       `json:"user,omitempty"`
	Session          *Snapshot   `json:"session,omitempty"`
	Round            *RoundInfo  `json:"round,omitempty"`
	Votes            []Vote      `json:"votes,omitempty"`
	Statistics       *Statistics `json:"statistics,omitempty"`
	Reason           string      `json:"reason,omitempty"`
	SecondsRemaining int         `json:"secondsRemaining,omitempty"`
	Directory        []Summary   `json:"sessions,omitempty"`
}
