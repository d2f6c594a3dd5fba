package session

import "errors"

// Precondition violations: surfaced to the caller, nothing changes.
var (
	ErrAlreadyNegotiating = errors.New("already negotiating")
	ErrNoActiveConnection = errors.New("no active connection")
)

// ErrStaleMessage marks a relay message that does not fit the current
// signaling state. It is logged and dropped; the session carries on.
var ErrStaleMessage = errors.New("stale message")

// Fatal negotiation errors: the handle is closed.
var (
	ErrMalformedRemoteDescription = errors.New("malformed remote description")
	ErrMediaPathFailed            = errors.New("media path failed")
)

// ErrStopped is returned by intents issued after Run has returned.
var ErrStopped = errors.New("negotiator stopped")
