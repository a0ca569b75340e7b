package game

import "errors"

// Sentinel errors returned by sessions and the registry.
var (
	ErrUnauthenticated = errors.New("operation requires an authenticated player")
	ErrInvalidAmount   = errors.New("reward amount must be positive")
	ErrNoIdentity      = errors.New("identity has neither player id nor session id")
)
