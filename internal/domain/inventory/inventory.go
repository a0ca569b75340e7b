// Package inventory holds a player's collected entries as seen by one
// session, newest first.
package inventory

import (
	"sort"

	"github.com/okian/tapforge/internal/domain/model"
)

// Inventory is the local view of a player's entries. From the engine's
// perspective it is append-only; entries leave only when a confirmed craft
// consumes them or when a refresh replaces the whole view. It is not safe
// for concurrent use.
type Inventory struct {
	entries []model.InventoryEntry
	index   map[string]int
}

// New creates an empty inventory.
func New() *Inventory {
	return &Inventory{index: make(map[string]int)}
}

// Len returns the number of entries.
func (inv *Inventory) Len() int { return len(inv.entries) }

// Append adds a newly granted entry at the front.
func (inv *Inventory) Append(e model.InventoryEntry) {
	inv.entries = append([]model.InventoryEntry{e}, inv.entries...)
	inv.reindex()
}

// Replace swaps in an authoritative listing, sorted newest first.
func (inv *Inventory) Replace(entries []model.InventoryEntry) {
	inv.entries = make([]model.InventoryEntry, len(entries))
	copy(inv.entries, entries)
	sort.SliceStable(inv.entries, func(i, j int) bool {
		return inv.entries[i].CollectedAt.After(inv.entries[j].CollectedAt)
	})
	inv.reindex()
}

// Lookup resolves ids. Missing ids are returned separately, in input order.
func (inv *Inventory) Lookup(ids []string) (found []model.InventoryEntry, missing []string) {
	for _, id := range ids {
		if i, ok := inv.index[id]; ok {
			found = append(found, inv.entries[i])
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}

// Remove drops the entries with the given ids and returns how many were
// present.
func (inv *Inventory) Remove(ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := inv.entries[:0]
	removed := 0
	for _, e := range inv.entries {
		if _, ok := drop[e.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	inv.entries = kept
	inv.reindex()
	return removed
}

// Entries returns a copy of the entries, newest first.
func (inv *Inventory) Entries() []model.InventoryEntry {
	out := make([]model.InventoryEntry, len(inv.entries))
	copy(out, inv.entries)
	return out
}

func (inv *Inventory) reindex() {
	inv.index = make(map[string]int, len(inv.entries))
	for i, e := range inv.entries {
		inv.index[e.ID] = i
	}
}
