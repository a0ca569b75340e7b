package syncer

import "errors"

// Sentinel kinds for synchronizer errors.
var (
	ErrInvalidProgress = errors.New("progress snapshot failed validation")
	ErrInvalidDrop     = errors.New("drop failed validation")
	ErrAnonymous       = errors.New("anonymous session is not persisted")
)
