// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/tapforge/internal/domain/loot"
)

// Source tags for entries not granted by a rank-up.
const (
	// BonusSource tags entries granted by the probabilistic bonus roll.
	BonusSource = "Bonus"
	// CraftSource tags entries produced by a craft.
	CraftSource = "Craft"
)

// PlayerProgress is the mutable progression record of one player.
// RankIndex is always derivable from XP through the rank table.
type PlayerProgress struct {
	PlayerID   string `json:"player_id,omitempty" validate:"required,max=128"`
	XP         int64  `json:"xp" validate:"gte=0,lte=1000000000000"`
	ClickCount int64  `json:"click_count" validate:"gte=0,lte=1000000000000"`
	RankIndex  int    `json:"rank_index" validate:"gte=0"`
	// Version is the optimistic concurrency token of the stored record.
	// Zero means the record has never been stored.
	Version int64 `json:"version" validate:"gte=0"`
}

// Tap is a single tap submission as received from a client.
type Tap struct {
	TapID    string    // optional client id for idempotent retries
	ClientTS time.Time // reported client time; never used for throttling
}

// InventoryEntry is one collected loot item. Entries are denormalized copies
// of the template they were stamped from.
type InventoryEntry struct {
	ID          string      `json:"id"`
	PlayerID    string      `json:"player_id"`
	LootName    string      `json:"loot_name"`
	IconRef     string      `json:"icon_ref"`
	Rarity      loot.Rarity `json:"rarity"`
	SourceRank  string      `json:"source_rank"`
	CollectedAt time.Time   `json:"collected_at"`
	Equipped    bool        `json:"is_equipped"`
}

// Template returns the loot template the entry was stamped from.
func (e InventoryEntry) Template() loot.Template {
	return loot.Template{Name: e.LootName, IconRef: e.IconRef, Rarity: e.Rarity}
}

// Drop is the outbound record for a newly granted entry, before the store
// assigns an id.
type Drop struct {
	PlayerID    string      `json:"player_id" validate:"required,max=128"`
	LootName    string      `json:"loot_name" validate:"required,max=64"`
	IconRef     string      `json:"icon_ref" validate:"required,max=256"`
	Rarity      loot.Rarity `json:"rarity" validate:"rarity"`
	SourceRank  string      `json:"source_rank" validate:"required,max=64"`
	CollectedAt time.Time   `json:"collected_at" validate:"required"`
}

// NewDrop stamps tpl for playerID.
func NewDrop(playerID string, tpl loot.Template, source string, at time.Time) Drop {
	return Drop{
		PlayerID:    playerID,
		LootName:    tpl.Name,
		IconRef:     tpl.IconRef,
		Rarity:      tpl.Rarity,
		SourceRank:  source,
		CollectedAt: at,
	}
}

// Entry converts the drop into an inventory entry with the given id.
func (d Drop) Entry(id string) InventoryEntry {
	return InventoryEntry{
		ID:          id,
		PlayerID:    d.PlayerID,
		LootName:    d.LootName,
		IconRef:     d.IconRef,
		Rarity:      d.Rarity,
		SourceRank:  d.SourceRank,
		CollectedAt: d.CollectedAt,
	}
}

// CraftResult is the confirmed outcome of a craft transaction.
type CraftResult struct {
	Result      InventoryEntry `json:"result"`
	ConsumedIDs []string       `json:"consumed_ids"`
	XPAwarded   int64          `json:"xp_awarded"`
	// Progress is the stored record after the transaction.
	Progress PlayerProgress `json:"progress"`
}
