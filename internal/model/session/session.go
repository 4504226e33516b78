package session

import (
	"sort"
	"time"
)

// Session is a live estimation room. Owned exclusively by the registry;
// nothing outside it mutates these fields.
type Session struct {
	ID                        string
	Name                      string
	Users                     map[string]*User
	ScrumMasterID             string
	CurrentRound              *Round
	CreatedAt                 time.Time
	LastActivityAt            time.Time
	IsPaused                  bool
	ScrumMasterDisconnectedAt *time.Time
}

// Round is one estimation cycle. A new round replaces the previous Round
// object; votes are keyed by user id, last submission wins.
type Round struct {
	ID         string
	StartedAt  time.Time
	Votes      map[string]Vote
	IsRevealed bool
	RevealedAt *time.Time
}

// Snapshot is a deep-copied projection of a Session, safe to marshal and
// broadcast after the registry lock is released. Vote values are not
// included pre-reveal; the round is reduced to RoundInfo.
type Snapshot struct {
	ID                        string     `json:"id"`
	Name                      string     `json:"name"`
	Users                     []User     `json:"users"`
	ScrumMasterID             string     `json:"scrumMasterId"`
	CurrentRound              *RoundInfo `json:"currentRound,omitempty"`
	CreatedAt                 time.Time  `json:"createdAt"`
	LastActivityAt            time.Time  `json:"lastActivityAt"`
	IsPaused                  bool       `json:"isPaused"`
	ScrumMasterDisconnectedAt *time.Time `json:"scrumMasterDisconnectedAt,omitempty"`
}

// RoundInfo projects a Round without exposing who voted what.
type RoundInfo struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"startedAt"`
	IsRevealed bool       `json:"isRevealed"`
	RevealedAt *time.Time `json:"revealedAt,omitempty"`
	VoteCount  int        `json:"voteCount"`
}

// Summary is the directory listing entry for a live session.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot builds the session's broadcast projection. Users are ordered by
// join time so clients render a stable roster.
func (s *Session) Snapshot() Snapshot {
	users := make([]User, 0, len(s.Users))
	for _, u := range s.Users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})

	snap := Snapshot{
		ID:             s.ID,
		Name:           s.Name,
		Users:          users,
		ScrumMasterID:  s.ScrumMasterID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		IsPaused:       s.IsPaused,
	}
	if s.ScrumMasterDisconnectedAt != nil {
		at := *s.ScrumMasterDisconnectedAt
		snap.ScrumMasterDisconnectedAt = &at
	}
	if s.CurrentRound != nil {
		info := s.CurrentRound.Info()
		snap.CurrentRound = &info
	}
	return snap
}

// Info projects the round for broadcast.
func (r *Round) Info() RoundInfo {
	info := RoundInfo{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		IsRevealed: r.IsRevealed,
		VoteCount:  len(r.Votes),
	}
	if r.RevealedAt != nil {
		at := *r.RevealedAt
		info.RevealedAt = &at
	}
	return info
}

// Summary builds the directory entry for the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Name:      s.Name,
		UserCount: len(s.Users),
		CreatedAt: s.CreatedAt,
	}
}
