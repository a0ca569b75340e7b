package loot

import "errors"

// Sentinel kinds for loot errors.
var (
	ErrUnknownRarity = errors.New("unknown rarity")
)
