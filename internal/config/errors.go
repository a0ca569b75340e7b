package config

import (
	"errors"
)

// Sentinel errors returned by Load and Validate. Callers match them with
// errors.Is.
var (
	// ErrInvalidConfig reports values that are inconsistent or out of range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports an unreadable file or an undecodable value.
	ErrLoadConfig = errors.New("load config failed")
)
