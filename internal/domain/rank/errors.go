package rank

import "errors"

// Sentinel kinds for rank table errors.
var (
	ErrEmptyTable   = errors.New("rank table is empty")
	ErrInvalidTable = errors.New("invalid rank table")
)
