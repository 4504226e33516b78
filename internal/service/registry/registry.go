// Package registry owns all live session state: membership, voting round
// progression, Scrum Master custody and expiry. It is the only component
// that mutates sessions; transports call in and observe the results through
// the event sink.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
)

// Broadcast reasons attached to session lifecycle events.
const (
	ReasonEnded    = "session ended by the Scrum Master"
	ReasonExpired  = "session expired due to inactivity"
	ReasonSMAbsent = "waiting for the Scrum Master to return"
	ReasonAllLeft  = "all participants left"
)

// expiryWarningLead is how far before expiry the sessionExpiring countdown
// event fires.
const expiryWarningLead = time.Minute

// Sink receives every broadcast event the registry produces. It is invoked
// synchronously while the registry lock is held, so recipients observe
// events in mutation order. Implementations must not call back into the
// registry and should hand the event off without blocking.
type Sink func(evt session.Event)

// Config bounds the registry. Zero fields fall back to the defaults from
// the product limits (3 sessions, 16 users, 10 minute timeout, 5 minute
// grace period).
type Config struct {
	MaxConcurrentSessions int
	MaxUsersPerSession    int
	SessionTimeout        time.Duration
	ScrumMasterGrace      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = 3
	}
	if c.MaxUsersPerSession <= 0 {
		c.MaxUsersPerSession = 16
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 10 * time.Minute
	}
	if c.ScrumMasterGrace <= 0 {
		c.ScrumMasterGrace = 5 * time.Minute
	}
	return c
}

// Registry is the process-local session authority. Construct one per
// process (or per test) with New; there is no package-level instance.
type Registry struct {
	cfg  Config
	sink Sink

	mu       sync.RWMutex
	sessions map[string]*session.Session

	// Timer handles are compared against the registered entry inside each
	// callback, so a timer that fires after being reset or cancelled is a
	// no-op.
	expiryTimers map[string]*time.Timer
	warnTimers   map[string]*time.Timer
	graceTimers  map[string]*time.Timer
}

// New builds an empty registry. sink may be nil when no transport is
// attached, e.g. in tests that only assert state.
func New(cfg Config, sink Sink) *Registry {
	return &Registry{
		cfg:          cfg.withDefaults(),
		sink:         sink,
		sessions:     make(map[string]*session.Session),
		expiryTimers: make(map[string]*time.Timer),
		warnTimers:   make(map[string]*time.Timer),
		graceTimers:  make(map[string]*time.Timer),
	}
}

func (r *Registry) emit(evt session.Event) {
	if r.sink != nil {
		r.sink(evt)
	}
}

// CreateSession opens a new session with the creator as Scrum Master.
func (r *Registry) CreateSession(name string, creator session.User) (session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.cfg.MaxConcurrentSessions {
		return session.Snapshot{}, ErrMaxSessionsReached
	}

	now := time.Now().UTC()
	creator.IsConnected = true
	creator.HasVoted = false
	creator.IsScrumMaster = true
	creator.JoinedAt = now

	sess := &session.Session{
		ID:             uuid.NewString(),
		Name:           name,
		Users:          map[string]*session.User{creator.ID: &creator},
		ScrumMasterID:  creator.ID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	r.sessions[sess.ID] = sess
	r.resetExpiryTimersLocked(sess.ID)

	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
	return sess.Snapshot(), nil
}

// JoinSession adds user as a plain participant.
func (r *Registry) JoinSession(sessionID string, user session.User) (session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return session.Snapshot{}, ErrSessionNotFound
	}
	if len(sess.Users) >= r.cfg.MaxUsersPerSession {
		return session.Snapshot{}, ErrSessionFull
	}

	user.IsConnected = true
	user.HasVoted = false
	user.IsScrumMaster = false
	user.JoinedAt = time.Now().UTC()
	sess.Users[user.ID] = &user
	r.touchLocked(sess)

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventUserJoined, SessionID: sess.ID, User: &user})
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
	return snap, nil
}

// RemoveUser handles an explicit leave or a kick. The last participant
// leaving tears the session down and nil is returned. Removing the Scrum
// Master while others remain pauses the session and starts the grace
// timer.
func (r *Registry) RemoveUser(sessionID, userID string) (*session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, ok := sess.Users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	delete(sess.Users, userID)

	if len(sess.Users) == 0 {
		r.teardownLocked(sessionID, ReasonAllLeft, false)
		r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
		return nil, nil
	}

	r.emit(session.Event{Type: session.EventUserLeft, SessionID: sess.ID, UserID: userID})

	if sess.ScrumMasterID == userID {
		r.pauseLocked(sess)
	}
	r.touchLocked(sess)

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
	return &snap, nil
}

// MarkDisconnected records a dropped transport for userID. Membership is
// kept; a disconnected Scrum Master pauses the session until reconnect or
// grace expiry. Returns false when the session or user is unknown.
func (r *Registry) MarkDisconnected(sessionID, userID string) (*session.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	user, ok := sess.Users[userID]
	if !ok {
		return nil, false
	}

	user.IsConnected = false
	r.emit(session.Event{Type: session.EventUserDisconnected, SessionID: sess.ID, UserID: userID})

	if sess.ScrumMasterID == userID && !sess.IsPaused {
		r.pauseLocked(sess)
	}

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	return &snap, true
}

// ReconnectUser restores connectivity for an existing participant; it never
// re-joins. Reconnecting an already-connected user only refreshes activity.
func (r *Registry) ReconnectUser(sessionID, userID string) (*session.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	user, ok := sess.Users[userID]
	if !ok {
		return nil, false
	}

	if !user.IsConnected {
		user.IsConnected = true
		r.emit(session.Event{Type: session.EventUserReconnected, SessionID: sess.ID, UserID: userID})
	}

	if sess.ScrumMasterID == userID && sess.IsPaused {
		r.resumeLocked(sess)
	}
	r.touchLocked(sess)

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	return &snap, true
}

// StartVotingRound opens a fresh round, discarding any previous one and
// resetting every participant's voted flag. The same operation starts the
// first round and every subsequent one.
func (r *Registry) StartVotingRound(sessionID string) (session.RoundInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return session.RoundInfo{}, ErrSessionNotFound
	}

	isNewRound := sess.CurrentRound != nil
	round := &session.Round{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Votes:     make(map[string]session.Vote),
	}
	sess.CurrentRound = round
	for _, u := range sess.Users {
		u.HasVoted = false
	}
	r.touchLocked(sess)

	info := round.Info()
	evtType := session.EventVotingStarted
	if isNewRound {
		evtType = session.EventNewRoundStarted
	}
	r.emit(session.Event{Type: evtType, SessionID: sess.ID, Round: &info})
	return info, nil
}

// SubmitVote upserts userID's vote in the current round. Only the fact that
// the user voted is broadcast; the value stays hidden until the reveal.
func (r *Registry) SubmitVote(sessionID, userID string, value session.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.CurrentRound == nil || sess.CurrentRound.IsRevealed {
		return ErrVotingNotActive
	}
	user, ok := sess.Users[userID]
	if !ok {
		return ErrNotParticipant
	}
	if !value.Valid() {
		return ErrInvalidVote
	}

	sess.CurrentRound.Votes[userID] = session.Vote{
		UserID:      userID,
		Value:       value,
		SubmittedAt: time.Now().UTC(),
	}
	user.HasVoted = true
	r.touchLocked(sess)

	r.emit(session.Event{Type: session.EventVoteSubmitted, SessionID: sess.ID, UserID: userID})
	return nil
}

// RevealVotes seals the current round and returns its votes with computed
// statistics. Revealing an already-revealed round is rejected.
func (r *Registry) RevealVotes(sessionID string) ([]session.Vote, session.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.CurrentRound == nil {
		return nil, session.Statistics{}, ErrSessionNotFound
	}
	if sess.CurrentRound.IsRevealed {
		return nil, session.Statistics{}, ErrVotingNotActive
	}

	now := time.Now().UTC()
	sess.CurrentRound.IsRevealed = true
	sess.CurrentRound.RevealedAt = &now

	votes := make([]session.Vote, 0, len(sess.CurrentRound.Votes))
	for _, v := range sess.CurrentRound.Votes {
		votes = append(votes, v)
	}
	stats := ComputeStatistics(votes)
	r.touchLocked(sess)

	r.emit(session.Event{Type: session.EventVotesRevealed, SessionID: sess.ID, Votes: votes, Statistics: &stats})
	return votes, stats, nil
}

// TransferScrumMaster hands the role from fromID to toID. Only the current
// holder may transfer, and never to themselves. A paused session resumes
// when the role lands on a connected participant.
func (r *Registry) TransferScrumMaster(sessionID, fromID, toID string) (session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return session.Snapshot{}, ErrSessionNotFound
	}
	if sess.ScrumMasterID != fromID {
		return session.Snapshot{}, ErrNotAuthorized
	}
	if fromID == toID {
		return session.Snapshot{}, ErrSelfTransfer
	}
	target, ok := sess.Users[toID]
	if !ok {
		return session.Snapshot{}, ErrUserNotFound
	}

	if current, ok := sess.Users[fromID]; ok {
		current.IsScrumMaster = false
	}
	target.IsScrumMaster = true
	sess.ScrumMasterID = toID
	r.emit(session.Event{Type: session.EventScrumMasterChanged, SessionID: sess.ID, UserID: toID})

	if sess.IsPaused && target.IsConnected {
		r.resumeLocked(sess)
	}
	r.touchLocked(sess)

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	return snap, nil
}

// RenameSession updates the display name. Authorization is enforced at the
// transport boundary.
func (r *Registry) RenameSession(sessionID, name string) (session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return session.Snapshot{}, ErrSessionNotFound
	}
	if name == "" {
		return session.Snapshot{}, ErrEmptyName
	}

	sess.Name = name
	r.touchLocked(sess)

	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
	return snap, nil
}

// EndSession tears the session down unconditionally. No-op when absent.
func (r *Registry) EndSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return
	}
	r.teardownLocked(sessionID, ReasonEnded, true)
	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
}

// GetSession returns a projection of the named session, or false when it
// does not exist. Absence here is not an error.
func (r *Registry) GetSession(sessionID string) (session.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// ScrumMasterID reports the current role holder for boundary authorization
// checks. ok is false when the session does not exist.
func (r *Registry) ScrumMasterID(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.ScrumMasterID, true
}

// ActiveSessions lists the directory of live sessions.
func (r *Registry) ActiveSessions() []session.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.directoryLocked()
}

// ExpireInactive sweeps out every session idle longer than the configured
// timeout. Runs on a fixed interval as a safety net beside the per-session
// timers.
func (r *Registry) ExpireInactive(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]string, 0)
	for id, sess := range r.sessions {
		if now.Sub(sess.LastActivityAt) > r.cfg.SessionTimeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.teardownLocked(id, ReasonExpired, true)
	}
	if len(expired) > 0 {
		r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
	}
}

func (r *Registry) directoryLocked() []session.Summary {
	summaries := make([]session.Summary, 0, len(r.sessions))
	for _, sess := range r.sessions {
		summaries = append(summaries, sess.Summary())
	}
	return summaries
}

// touchLocked refreshes the activity stamp and re-arms the expiry timers.
func (r *Registry) touchLocked(sess *session.Session) {
	sess.LastActivityAt = time.Now().UTC()
	r.resetExpiryTimersLocked(sess.ID)
}

func (r *Registry) resetExpiryTimersLocked(sessionID string) {
	r.stopTimerLocked(r.expiryTimers, sessionID)
	r.stopTimerLocked(r.warnTimers, sessionID)

	var expiry *time.Timer
	expiry = time.AfterFunc(r.cfg.SessionTimeout, func() {
		r.onExpiryTimer(sessionID, expiry)
	})
	r.expiryTimers[sessionID] = expiry

	if r.cfg.SessionTimeout > expiryWarningLead {
		var warn *time.Timer
		warn = time.AfterFunc(r.cfg.SessionTimeout-expiryWarningLead, func() {
			r.onWarnTimer(sessionID, warn)
		})
		r.warnTimers[sessionID] = warn
	}
}

func (r *Registry) onExpiryTimer(sessionID string, handle *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.expiryTimers[sessionID] != handle {
		return
	}
	r.teardownLocked(sessionID, ReasonExpired, true)
	r.emit(session.Event{Type: session.EventActiveSessions, Directory: r.directoryLocked()})
}

func (r *Registry) onWarnTimer(sessionID string, handle *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.warnTimers[sessionID] != handle {
		return
	}
	delete(r.warnTimers, sessionID)
	r.emit(session.Event{
		Type:             session.EventSessionExpiring,
		SessionID:        sessionID,
		SecondsRemaining: int(expiryWarningLead.Seconds()),
	})
}

// pauseLocked puts the session into the Scrum-Master-absent state and arms
// the grace timer for auto succession.
func (r *Registry) pauseLocked(sess *session.Session) {
	now := time.Now().UTC()
	sess.IsPaused = true
	sess.ScrumMasterDisconnectedAt = &now

	r.stopTimerLocked(r.graceTimers, sess.ID)
	var grace *time.Timer
	grace = time.AfterFunc(r.cfg.ScrumMasterGrace, func() {
		r.onGraceTimer(sess.ID, grace)
	})
	r.graceTimers[sess.ID] = grace

	r.emit(session.Event{Type: session.EventSessionPaused, SessionID: sess.ID, Reason: ReasonSMAbsent})
}

func (r *Registry) resumeLocked(sess *session.Session) {
	sess.IsPaused = false
	sess.ScrumMasterDisconnectedAt = nil
	r.stopTimerLocked(r.graceTimers, sess.ID)
	r.emit(session.Event{Type: session.EventSessionResumed, SessionID: sess.ID})
}

// onGraceTimer runs auto succession: the earliest-joined still-connected
// participant takes over. With nobody connected the session stays paused
// until someone reconnects or leaves.
func (r *Registry) onGraceTimer(sessionID string, handle *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graceTimers[sessionID] != handle {
		return
	}
	delete(r.graceTimers, sessionID)

	sess, ok := r.sessions[sessionID]
	if !ok || len(sess.Users) == 0 {
		return
	}

	var successor *session.User
	for _, u := range sess.Users {
		if !u.IsConnected || u.ID == sess.ScrumMasterID {
			continue
		}
		if successor == nil ||
			u.JoinedAt.Before(successor.JoinedAt) ||
			(u.JoinedAt.Equal(successor.JoinedAt) && u.ID < successor.ID) {
			successor = u
		}
	}
	if successor == nil {
		return
	}

	if prev, ok := sess.Users[sess.ScrumMasterID]; ok {
		prev.IsScrumMaster = false
	}
	successor.IsScrumMaster = true
	sess.ScrumMasterID = successor.ID
	sess.IsPaused = false
	sess.ScrumMasterDisconnectedAt = nil

	r.emit(session.Event{Type: session.EventScrumMasterChanged, SessionID: sess.ID, UserID: successor.ID})
	r.emit(session.Event{Type: session.EventSessionResumed, SessionID: sess.ID})
	snap := sess.Snapshot()
	r.emit(session.Event{Type: session.EventSessionUpdated, SessionID: sess.ID, Session: &snap})
}

// teardownLocked cancels all timers and deletes the session.
func (r *Registry) teardownLocked(sessionID, reason string, announce bool) {
	r.stopTimerLocked(r.expiryTimers, sessionID)
	r.stopTimerLocked(r.warnTimers, sessionID)
	r.stopTimerLocked(r.graceTimers, sessionID)
	delete(r.sessions, sessionID)
	if announce {
		r.emit(session.Event{Type: session.EventSessionEnded, SessionID: sessionID, Reason: reason})
	}
}

func (r *Registry) stopTimerLocked(timers map[string]*time.Timer, sessionID string) {
	if t, ok := timers[sessionID]; ok {
		t.Stop()
		delete(timers, sessionID)
	}
}
