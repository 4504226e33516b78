package registry

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMaxSessionsReached = errors.New("maximum number of concurrent sessions reached")
	ErrSessionFull        = errors.New("session is full")
	ErrNotAuthorized      = errors.New("not authorized to perform this action")
	ErrVotingNotActive    = errors.New("no voting round in progress")
	ErrInvalidVote        = errors.New("invalid vote value")
	ErrNotParticipant     = errors.New("user is not a member of the session")
	ErrUserNotFound       = errors.New("user not found in session")
	ErrSelfTransfer       = errors.New("cannot transfer role to yourself")
	ErrEmptyName          = errors.New("name must not be empty")
)
