// Package repository defines the persistence contract for player progress
// and inventories, with in-memory and PostgreSQL implementations.
package repository

import (
	"context"
	"math"
	"time"

	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/pkg/metrics"
)

// Store provides read/write access to player progress and inventories.
type Store interface {
	// GetProgress returns ErrNotFound for players never stored.
	GetProgress(ctx context.Context, playerID string) (model.PlayerProgress, error)

	// UpsertProgress writes p if the stored version still equals p.Version
	// (zero for a record never stored) and returns the new version.
	// Returns ErrVersionConflict otherwise.
	UpsertProgress(ctx context.Context, p model.PlayerProgress) (int64, error)

	// ListInventory returns up to limit entries, newest first.
	ListInventory(ctx context.Context, playerID string, limit int) ([]model.InventoryEntry, error)

	// InsertDrop stores d and returns it with its assigned id.
	InsertDrop(ctx context.Context, d model.Drop) (model.InventoryEntry, error)

	// CraftItems consumes the selected entries, creates the result and
	// awards the recipe XP in one transaction. Precondition failures are
	// *crafting.Error values and change nothing.
	CraftItems(ctx context.Context, playerID string, entryIDs []string) (model.CraftResult, error)

	// IncrementXP adds amount to the player's XP without counting a click.
	IncrementXP(ctx context.Context, playerID string, amount int64) (model.PlayerProgress, error)

	// TopProgress returns up to limit records ordered by XP desc, player id asc.
	TopProgress(ctx context.Context, limit int) ([]model.PlayerProgress, error)

	// CountPlayers returns the number of stored progress records.
	CountPlayers(ctx context.Context) (int, error)
}

// grant adds amount XP to p and re-derives the rank index.
func grant(table *rank.Table, p model.PlayerProgress, amount int64) (model.PlayerProgress, error) {
	if amount < 0 || p.XP > math.MaxInt64-amount {
		return p, ErrInvalidAmount
	}
	p.XP += amount
	p.RankIndex = table.IndexForXP(p.XP)
	return p, nil
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && *err != nil {
		metrics.RecordStoreError(op)
	}
}
