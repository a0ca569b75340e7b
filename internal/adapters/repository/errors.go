package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("player not found")
	ErrVersionConflict = errors.New("progress version conflict")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidAmount   = errors.New("invalid xp amount")
	ErrEmptyPlayerID   = errors.New("empty player id")
)
