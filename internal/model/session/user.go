package session

import "time"

// User is a participant's membership record inside one session. Identity
// fields are self-asserted by the client; they are not verified against
// any identity provider.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	IsConnected   bool      `json:"isConnected"`
	HasVoted      bool      `json:"hasVoted"`
	IsScrumMaster bool      `json:"isScrumMaster"`
	JoinedAt      time.Time `json:"joinedAt"`
}
