package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

// MemoryStore keeps everything in process memory. It is safe for
// concurrent use.
type MemoryStore struct {
	table *rank.Table
	book  *crafting.Book
	opts  storeOptions

	mu        sync.RWMutex
	progress  map[string]model.PlayerProgress
	inventory map[string][]model.InventoryEntry // oldest first
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(table *rank.Table, book *crafting.Book, opts ...Option) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		table:     table,
		book:      book,
		opts:      o,
		progress:  make(map[string]model.PlayerProgress),
		inventory: make(map[string][]model.InventoryEntry),
	}
}

func (s *MemoryStore) GetProgress(_ context.Context, playerID string) (p model.PlayerProgress, err error) {
	defer observe("get_progress", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[playerID]
	if !ok {
		return model.PlayerProgress{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpsertProgress(_ context.Context, p model.PlayerProgress) (v int64, err error) {
	defer observe("upsert_progress", time.Now(), &err)
	if p.PlayerID == "" {
		return 0, ErrEmptyPlayerID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.progress[p.PlayerID]
	if current.Version != p.Version {
		return 0, ErrVersionConflict
	}
	p.Version++
	s.progress[p.PlayerID] = p
	return p.Version, nil
}

func (s *MemoryStore) ListInventory(_ context.Context, playerID string, limit int) (out []model.InventoryEntry, err error) {
	defer observe("list_inventory", time.Now(), &err)
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.inventory[playerID]
	out = make([]model.InventoryEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *MemoryStore) InsertDrop(_ context.Context, d model.Drop) (e model.InventoryEntry, err error) {
	defer observe("insert_drop", time.Now(), &err)
	if d.PlayerID == "" {
		return model.InventoryEntry{}, ErrEmptyPlayerID
	}
	e = d.Entry(s.opts.newID())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(e)
	return e, nil
}

// insertLocked keeps the player's entries ordered by collection time.
func (s *MemoryStore) insertLocked(e model.InventoryEntry) {
	entries := s.inventory[e.PlayerID]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].CollectedAt.After(e.CollectedAt) })
	entries = append(entries, model.InventoryEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	s.inventory[e.PlayerID] = entries
}

func (s *MemoryStore) CraftItems(_ context.Context, playerID string, entryIDs []string) (res model.CraftResult, err error) {
	defer observe("craft_items", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := entryIndex(s.inventory[playerID])
	plan, err := s.book.Check(entryIDs, playerID != "", owned)
	if err != nil {
		return model.CraftResult{}, err
	}

	p := s.progress[playerID]
	p.PlayerID = playerID
	p, err = grant(s.table, p, plan.Recipe.XPReward)
	if err != nil {
		return model.CraftResult{}, err
	}
	p.Version++

	consumed := plan.InputIDs()
	drop := make(map[string]struct{}, len(consumed))
	for _, id := range consumed {
		drop[id] = struct{}{}
	}
	kept := s.inventory[playerID][:0]
	for _, e := range s.inventory[playerID] {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	s.inventory[playerID] = kept

	result := model.NewDrop(playerID, plan.Result, model.CraftSource, s.opts.now()).Entry(s.opts.newID())
	s.insertLocked(result)
	s.progress[playerID] = p

	return model.CraftResult{
		Result:      result,
		ConsumedIDs: consumed,
		XPAwarded:   plan.Recipe.XPReward,
		Progress:    p,
	}, nil
}

func (s *MemoryStore) IncrementXP(_ context.Context, playerID string, amount int64) (p model.PlayerProgress, err error) {
	defer observe("increment_xp", time.Now(), &err)
	if playerID == "" {
		return model.PlayerProgress{}, ErrEmptyPlayerID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p = s.progress[playerID]
	p.PlayerID = playerID
	p, err = grant(s.table, p, amount)
	if err != nil {
		return model.PlayerProgress{}, err
	}
	p.Version++
	s.progress[playerID] = p
	return p, nil
}

func (s *MemoryStore) TopProgress(_ context.Context, limit int) (out []model.PlayerProgress, err error) {
	defer observe("top_progress", time.Now(), &err)
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out = make([]model.PlayerProgress, 0, len(s.progress))
	for _, p := range s.progress {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountPlayers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.progress), nil
}

// entryIndex adapts a stored listing to crafting.Lookup.
type entryIndex []model.InventoryEntry

func (ix entryIndex) Lookup(ids []string) (found []model.InventoryEntry, missing []string) {
	byID := make(map[string]model.InventoryEntry, len(ix))
	for _, e := range ix {
		byID[e.ID] = e
	}
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			found = append(found, e)
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}
