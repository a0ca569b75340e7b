package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrThrottled    = errors.New("too many requests")
	ErrLimit        = errors.New("limit must be between 1 and the configured maximum")
)
