// Package projection mirrors server-pushed session state on the client
// side of the event channel. Apply is idempotent: replaying a delivered
// event leaves the store unchanged, so reconnect-and-replay is safe.
package projection

import (
	"sync"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
)

// Store is one client's view of its session and the session directory.
type Store struct {
	mu        sync.RWMutex
	current   *session.Snapshot
	directory []session.Summary

	revealedVotes []session.Vote
	statistics    *session.Statistics

	lastError       string
	expiringSeconds int
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Apply folds one broadcast event into the mirrored state. Events for a
// session other than the one currently mirrored are ignored, except for
// sessionUpdated which adopts the pushed snapshot.
func (s *Store) Apply(evt session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt.Type {
	case session.EventActiveSessions:
		s.directory = append([]session.Summary(nil), evt.Directory...)
		return
	case session.EventError:
		s.lastError = evt.Reason
		return
	case session.EventSessionUpdated:
		if evt.Session != nil {
			snap := *evt.Session
			snap.Users = append([]session.User(nil), evt.Session.Users...)
			s.current = &snap
		}
		return
	}

	if s.current == nil || evt.SessionID != s.current.ID {
		return
	}

	switch evt.Type {
	case session.EventUserJoined:
		if evt.User != nil && s.findUser(evt.User.ID) == nil {
			s.current.Users = append(s.current.Users, *evt.User)
		}
	case session.EventUserLeft:
		s.removeUser(evt.UserID)
	case session.EventUserDisconnected:
		if u := s.findUser(evt.UserID); u != nil {
			u.IsConnected = false
		}
	case session.EventUserReconnected:
		if u := s.findUser(evt.UserID); u != nil {
			u.IsConnected = true
		}
	case session.EventScrumMasterChanged:
		s.current.ScrumMasterID = evt.UserID
		for i := range s.current.Users {
			s.current.Users[i].IsScrumMaster = s.current.Users[i].ID == evt.UserID
		}
	case session.EventVotingStarted, session.EventNewRoundStarted:
		if evt.Round != nil {
			round := *evt.Round
			s.current.CurrentRound = &round
			for i := range s.current.Users {
				s.current.Users[i].HasVoted = false
			}
			s.revealedVotes = nil
			s.statistics = nil
		}
	case session.EventVoteSubmitted:
		// Guarding on HasVoted keeps the count stable across replays and
		// across a user overwriting their own vote.
		if u := s.findUser(evt.UserID); u != nil && !u.HasVoted {
			u.HasVoted = true
			if s.current.CurrentRound != nil {
				s.current.CurrentRound.VoteCount++
			}
		}
	case session.EventVotesRevealed:
		s.revealedVotes = append([]session.Vote(nil), evt.Votes...)
		s.statistics = evt.Statistics
		if s.current.CurrentRound != nil {
			s.current.CurrentRound.IsRevealed = true
		}
	case session.EventSessionPaused:
		s.current.IsPaused = true
	case session.EventSessionResumed:
		s.current.IsPaused = false
	case session.EventSessionExpiring:
		s.expiringSeconds = evt.SecondsRemaining
	case session.EventSessionEnded:
		s.current = nil
		s.lastError = evt.Reason
		s.revealedVotes = nil
		s.statistics = nil
	}
}

// Current returns a copy of the mirrored session, or nil when not in one.
func (s *Store) Current() *session.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	snap := *s.current
	snap.Users = append([]session.User(nil), s.current.Users...)
	return &snap
}

// Directory returns the latest session directory.
func (s *Store) Directory() []session.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.Summary(nil), s.directory...)
}

// RevealedVotes returns the last revealed round's votes and statistics.
func (s *Store) RevealedVotes() ([]session.Vote, *session.Statistics) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.Vote(nil), s.revealedVotes...), s.statistics
}

// ExpiringSeconds reports the last expiry warning, 0 when none was seen.
func (s *Store) ExpiringSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiringSeconds
}

// LastError reports the most recent error or end-of-session reason.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Store) findUser(id string) *session.User {
	for i := range s.current.Users {
		if s.current.Users[i].ID == id {
			return &s.current.Users[i]
		}
	}
	return nil
}

func (s *Store) removeUser(id string) {
	for i := range s.current.Users {
		if s.current.Users[i].ID == id {
			s.current.Users = append(s.current.Users[:i], s.current.Users[i+1:]...)
			return
		}
	}
}
