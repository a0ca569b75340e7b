// Package game composes the progression, loot and crafting components into
// per-player sessions.
package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tapforge/internal/adapters/repository"
	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/dedupe"
	"github.com/okian/tapforge/internal/domain/drops"
	"github.com/okian/tapforge/internal/domain/inventory"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/domain/ratelimit"
	"github.com/okian/tapforge/internal/syncer"
	"github.com/okian/tapforge/pkg/logger"
	"github.com/okian/tapforge/pkg/metrics"
)

// ProvisionalPrefix marks inventory ids assigned locally before the store
// confirms a drop.
const ProvisionalPrefix = "local-"

// TapResult is the effect of one tap submission.
type TapResult struct {
	Accepted  bool
	Duplicate bool
	Delta     int64
	Progress  model.PlayerProgress
	Rank      rank.Definition
	RankUps   []progress.RankUp
	Drops     []model.InventoryEntry
	ColorTier int
	Sync      syncer.Status
}

// GrantResult is the effect of a confirmed craft or reward.
type GrantResult struct {
	Craft    *model.CraftResult
	XP       int64
	Progress model.PlayerProgress
	RankUps  []progress.RankUp
	Drops    []model.InventoryEntry
	Sync     syncer.Status
}

// View is a read-only snapshot of a session.
type View struct {
	Progress  model.PlayerProgress
	Rank      rank.Definition
	Next      *rank.Definition
	AtMaxRank bool
	ColorTier int
	Inventory int
	Sync      syncer.Status
}

// Session owns the local state of one player. Taps are applied in arrival
// order under one lock; store I/O never happens while it is held.
type Session struct {
	playerID string
	store    repository.Store
	table    *rank.Table
	book     *crafting.Book
	seen     dedupe.Deduper
	sync     *syncer.Synchronizer
	now      func() time.Time
	log      logger.Logger

	mu      sync.Mutex
	limiter *ratelimit.TapLimiter
	acc     *progress.Accumulator
	drops   *drops.Engine
	inv     *inventory.Inventory
}

// NewSession creates a session. An empty playerID makes an anonymous
// session that never reaches the store and receives no drops.
func NewSession(playerID string, store repository.Store, table *rank.Table, book *crafting.Book, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Session{
		playerID: playerID,
		store:    store,
		table:    table,
		book:     book,
		seen:     dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(o.dedupeSize)),
		now:      o.now,
		log:      o.log,
		limiter:  ratelimit.NewTapLimiter(o.tapInterval),
		acc:      progress.NewAccumulator(table, o.progressOpts...),
		drops:    drops.NewEngine(table.Catalog(), o.dropOpts...),
		inv:      inventory.New(),
	}
	s.sync = syncer.New(playerID, store, local{s}, table, o.syncOpts...)
	return s
}

// PlayerID returns the player id, empty for anonymous sessions.
func (s *Session) PlayerID() string { return s.playerID }

// Authenticated reports whether the session persists its state.
func (s *Session) Authenticated() bool { return s.sync.Authenticated() }

// Hydrate restores stored state. It is idempotent.
func (s *Session) Hydrate(ctx context.Context) error {
	return s.sync.Hydrate(ctx)
}

// Tap registers one tap. The limiter reads the session clock, so a client
// timestamp cannot widen the tap rate. Throttled taps are reported with
// Accepted false and change nothing; a repeated tap id is acknowledged
// without effect.
func (s *Session) Tap(ctx context.Context, tap model.Tap) TapResult {
	if tap.TapID != "" && s.seen.SeenAndRecord(ctx, tap.TapID) {
		metrics.RecordTap("duplicate")
		res := s.tapView()
		res.Duplicate = true
		return res
	}

	s.mu.Lock()
	now := s.now()
	if !s.limiter.Accept(now.UnixMilli()) {
		s.mu.Unlock()
		metrics.RecordTap("throttled")
		if !tap.ClientTS.IsZero() {
			s.log.Debug(ctx, "Tap throttled",
				logger.String("player_id", s.playerID),
				logger.Int64("client_skew_ms", tap.ClientTS.Sub(now).Milliseconds()))
		}
		return s.tapView()
	}
	out := s.acc.Tap()
	var granted []model.Drop
	if s.Authenticated() {
		granted = s.drops.ForRankUps(s.playerID, out.RankUps)
		if bonus, ok := s.drops.RollBonus(s.playerID); ok {
			granted = append(granted, bonus)
		}
	}
	entries := s.stageLocked(granted)
	res := TapResult{
		Accepted:  true,
		Delta:     out.Delta,
		Progress:  out.Progress,
		Rank:      s.acc.Rank(),
		RankUps:   out.RankUps,
		Drops:     entries,
		ColorTier: s.acc.ColorTier(),
	}
	s.mu.Unlock()

	metrics.RecordTap("accepted")
	metrics.RecordXPGranted(out.Delta)
	if len(out.RankUps) > 0 {
		metrics.RecordRankUp(len(out.RankUps))
		s.log.Info(ctx, "Rank reached",
			logger.String("player_id", s.playerID),
			logger.String("rank", res.Rank.DisplayName),
			logger.Int64("xp", res.Progress.XP))
	}
	s.sync.ScheduleSave()
	s.persist(ctx, granted)

	res.Progress.Version = s.sync.Confirmed().Version
	res.Sync = s.sync.Status()
	return res
}

func (s *Session) tapView() TapResult {
	s.mu.Lock()
	p := s.acc.Progress()
	res := TapResult{Progress: p, Rank: s.acc.Rank(), ColorTier: s.acc.ColorTier()}
	s.mu.Unlock()
	res.Progress.Version = s.sync.Confirmed().Version
	res.Sync = s.sync.Status()
	return res
}

// stageLocked adds granted drops to the local inventory under provisional
// ids. The caller holds s.mu.
func (s *Session) stageLocked(granted []model.Drop) []model.InventoryEntry {
	if len(granted) == 0 {
		return nil
	}
	out := make([]model.InventoryEntry, 0, len(granted))
	for _, d := range granted {
		e := d.Entry(ProvisionalPrefix + uuid.NewString())
		s.inv.Append(e)
		out = append(out, e)
		metrics.RecordDrop(dropSource(d))
	}
	return out
}

func dropSource(d model.Drop) string {
	switch d.SourceRank {
	case model.BonusSource:
		return "bonus"
	case model.CraftSource:
		return "craft"
	default:
		return "guaranteed"
	}
}

func (s *Session) persist(ctx context.Context, granted []model.Drop) {
	for _, d := range granted {
		if err := s.sync.PersistDrop(ctx, d); err != nil {
			s.log.Warn(ctx, "Drop not persisted",
				logger.String("player_id", s.playerID),
				logger.String("loot", d.LootName),
				logger.Error(err))
		}
	}
}

// Craft consumes the selected entries through the store. Preconditions are
// checked locally when every entry is in the hydrated page; otherwise the
// store decides ownership. On failure nothing changes anywhere.
func (s *Session) Craft(ctx context.Context, entryIDs []string) (GrantResult, error) {
	s.mu.Lock()
	err := s.checkCraftLocked(entryIDs)
	s.mu.Unlock()
	if err != nil {
		metrics.RecordCraft(crafting.Code(err))
		return GrantResult{}, err
	}

	var craft model.CraftResult
	res, err := s.grant(ctx,
		func(ctx context.Context) (model.PlayerProgress, int64, error) {
			r, err := s.store.CraftItems(ctx, s.playerID, entryIDs)
			craft = r
			return r.Progress, r.XPAwarded, err
		},
		func() {
			s.inv.Remove(craft.ConsumedIDs)
			s.inv.Append(craft.Result)
		})
	if err != nil {
		if code := crafting.Code(err); code != "" {
			metrics.RecordCraft(code)
		} else {
			metrics.RecordCraft("failed")
		}
		return GrantResult{}, err
	}
	metrics.RecordCraft("crafted")
	metrics.RecordDrop("craft")
	s.log.Info(ctx, "Craft confirmed",
		logger.String("player_id", s.playerID),
		logger.String("result", craft.Result.LootName),
		logger.Int("consumed", len(craft.ConsumedIDs)))

	if err := s.sync.RefreshInventory(ctx); err != nil {
		s.log.Warn(ctx, "Inventory refresh after craft failed", logger.Error(err))
	}
	res.Craft = &craft
	res.Sync = s.sync.Status()
	return res, nil
}

// checkCraftLocked runs the local craft checks. The caller holds s.mu.
func (s *Session) checkCraftLocked(ids []string) error {
	if _, missing := s.inv.Lookup(crafting.UniqueIDs(ids)); len(missing) > 0 {
		return crafting.CheckSelection(ids, s.Authenticated())
	}
	_, err := s.book.Check(ids, s.Authenticated(), s.inv)
	return err
}

// Reward grants amount XP from outside gameplay through the store.
func (s *Session) Reward(ctx context.Context, amount int64) (GrantResult, error) {
	if !s.Authenticated() {
		return GrantResult{}, ErrUnauthenticated
	}
	if amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	res, err := s.grant(ctx, func(ctx context.Context) (model.PlayerProgress, int64, error) {
		p, err := s.store.IncrementXP(ctx, s.playerID, amount)
		return p, amount, err
	}, nil)
	if err != nil {
		return GrantResult{}, err
	}
	metrics.RecordReward()
	metrics.RecordXPGranted(amount)
	res.Sync = s.sync.Status()
	return res, nil
}

// grant runs a server-side XP award and mirrors it locally. Rank-ups it
// causes grant their guaranteed drops.
func (s *Session) grant(
	ctx context.Context,
	call func(ctx context.Context) (model.PlayerProgress, int64, error),
	mutate func(),
) (GrantResult, error) {
	var (
		res     GrantResult
		granted []model.Drop
	)
	err := s.sync.Grant(ctx, call, func(xp int64) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if mutate != nil {
			mutate()
		}
		out := s.acc.Reward(xp)
		granted = s.drops.ForRankUps(s.playerID, out.RankUps)
		res.XP = xp
		res.RankUps = out.RankUps
		res.Drops = s.stageLocked(granted)
	})
	if err != nil {
		return GrantResult{}, err
	}
	if len(res.RankUps) > 0 {
		metrics.RecordRankUp(len(res.RankUps))
	}
	s.persist(ctx, granted)

	s.mu.Lock()
	res.Progress = s.acc.Progress()
	s.mu.Unlock()
	res.Progress.Version = s.sync.Confirmed().Version
	return res, nil
}

// View returns the current progress snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		Progress:  s.acc.Progress(),
		Rank:      s.acc.Rank(),
		AtMaxRank: s.acc.AtMaxRank(),
		ColorTier: s.acc.ColorTier(),
		Inventory: s.inv.Len(),
	}
	if next, ok := s.table.Next(v.Progress.RankIndex); ok {
		v.Next = &next
	}
	s.mu.Unlock()
	v.Progress.Version = s.sync.Confirmed().Version
	v.Sync = s.sync.Status()
	return v
}

// Progress returns the local progress record.
func (s *Session) Progress() model.PlayerProgress {
	return s.View().Progress
}

// Inventory returns the local inventory, newest first.
func (s *Session) Inventory() []model.InventoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.Entries()
}

// Status returns the sync status.
func (s *Session) Status() syncer.Status { return s.sync.Status() }

// Close flushes a pending save. The session stays usable; later changes
// are saved through the normal debounce.
func (s *Session) Close(ctx context.Context) error {
	return s.sync.Flush(ctx)
}

// local exposes session state to the synchronizer.
type local struct{ s *Session }

func (l local) Snapshot() model.PlayerProgress {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.acc.Progress()
}

func (l local) Restore(p model.PlayerProgress, entries []model.InventoryEntry) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.acc.Restore(p)
	l.s.inv.Replace(withProvisional(entries, l.s.inv.Entries()))
}

func (l local) Rebase(remote, base model.PlayerProgress) model.PlayerProgress {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.acc.Restore(syncer.Rebase(l.s.table, remote, base, l.s.acc.Progress()))
	return l.s.acc.Progress()
}

func (l local) ReplaceInventory(entries []model.InventoryEntry) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.inv.Replace(withProvisional(entries, l.s.inv.Entries()))
}

// withProvisional keeps local entries the store has not confirmed yet.
// A provisional entry is confirmed once the listing holds an entry with the
// same loot, source and collection time.
func withProvisional(stored, current []model.InventoryEntry) []model.InventoryEntry {
	type key struct {
		name, source string
		at           int64
	}
	confirmed := make(map[key]struct{}, len(stored))
	for _, e := range stored {
		confirmed[key{e.LootName, e.SourceRank, e.CollectedAt.UnixMilli()}] = struct{}{}
	}
	out := make([]model.InventoryEntry, len(stored), len(stored)+len(current))
	copy(out, stored)
	for _, e := range current {
		if !strings.HasPrefix(e.ID, ProvisionalPrefix) {
			continue
		}
		if _, ok := confirmed[key{e.LootName, e.SourceRank, e.CollectedAt.UnixMilli()}]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}
