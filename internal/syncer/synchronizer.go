// Package syncer keeps one player's in-memory progress and inventory in step
// with the persistent store: hydration, debounced saves, drop inserts,
// inventory refresh and version rebasing.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/tapforge/internal/adapters/mq/queue"
	"github.com/okian/tapforge/internal/adapters/repository"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/pkg/logger"
	"github.com/okian/tapforge/pkg/metrics"
)

// Job kinds submitted to the dispatcher.
const (
	KindSave = "save"
	KindDrop = "drop"
)

// Local is the in-memory state a synchronizer keeps persisted. Calls may be
// made while the synchronizer holds its own I/O lock, so implementations
// must not call back into the synchronizer.
type Local interface {
	// Snapshot returns the current local progress.
	Snapshot() model.PlayerProgress
	// Restore replaces local state with hydrated records.
	Restore(p model.PlayerProgress, entries []model.InventoryEntry)
	// Rebase moves local progress onto remote, keeping what local gained
	// over base, and returns the result.
	Rebase(remote, base model.PlayerProgress) model.PlayerProgress
	// ReplaceInventory installs an authoritative inventory listing.
	ReplaceInventory(entries []model.InventoryEntry)
}

// Dispatcher runs jobs off the caller's goroutine.
type Dispatcher interface {
	Submit(ctx context.Context, job queue.Job) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, job queue.Job) error

// Submit calls f.
func (f DispatcherFunc) Submit(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Status describes how far local state is from the store.
type Status struct {
	// Persisted is true when the last store operation succeeded and no
	// local change is waiting.
	Persisted bool `json:"persisted"`
	// Pending is true while a save is scheduled or running.
	Pending bool `json:"pending"`
	// Degraded is true for anonymous sessions, which are never persisted.
	Degraded    bool      `json:"degraded"`
	Version     int64     `json:"version"`
	LastError   string    `json:"last_error,omitempty"`
	Warning     string    `json:"warning,omitempty"`
	LastSavedAt time.Time `json:"last_saved_at,omitempty"`
}

// Synchronizer persists the state of one player.
type Synchronizer struct {
	playerID string
	store    repository.Store
	local    Local
	table    *rank.Table
	gate     *Gate
	dispatch Dispatcher
	debounce *Debouncer
	pageSize int
	log      logger.Logger

	flight   singleflight.Group
	inFlight atomic.Int64

	// io serializes store writes of this player so a rebase always sees the
	// confirmed state the write was based on.
	io sync.Mutex

	mu        sync.Mutex
	hydrated  bool
	confirmed model.PlayerProgress
	status    Status
}

// New creates a synchronizer for playerID. An empty playerID yields a
// degraded synchronizer that never touches the store.
func New(playerID string, store repository.Store, local Local, table *rank.Table, opts ...Option) *Synchronizer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Synchronizer{
		playerID: playerID,
		store:    store,
		local:    local,
		table:    table,
		gate:     o.gate,
		dispatch: o.dispatch,
		debounce: NewDebouncer(o.delay),
		pageSize: o.pageSize,
		log:      o.log,
	}
	if s.gate == nil {
		s.gate = NewGate(table)
	}
	if s.dispatch == nil {
		s.dispatch = DispatcherFunc(func(ctx context.Context, job queue.Job) error { return job.Run(ctx) })
	}
	s.status.Degraded = !s.Authenticated()
	s.status.Persisted = true
	return s
}

// Authenticated reports whether the synchronizer is backed by the store.
func (s *Synchronizer) Authenticated() bool { return s.playerID != "" && s.store != nil }

// PlayerID returns the player this synchronizer persists.
func (s *Synchronizer) PlayerID() string { return s.playerID }

// Hydrate loads stored progress and the newest inventory page into local.
// Repeated calls after a success are no-ops.
func (s *Synchronizer) Hydrate(ctx context.Context) error {
	if !s.Authenticated() {
		s.mu.Lock()
		s.hydrated = true
		s.mu.Unlock()
		return nil
	}
	_, err, _ := s.flight.Do("hydrate", func() (interface{}, error) {
		s.mu.Lock()
		done := s.hydrated
		s.mu.Unlock()
		if done {
			return nil, nil
		}

		p, err := s.store.GetProgress(ctx, s.playerID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			p = model.PlayerProgress{PlayerID: s.playerID}
		case err != nil:
			return nil, fmt.Errorf("hydrate progress: %w", err)
		}
		p.RankIndex = s.table.IndexForXP(p.XP)

		entries, err := s.store.ListInventory(ctx, s.playerID, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("hydrate inventory: %w", err)
		}

		s.io.Lock()
		defer s.io.Unlock()
		s.local.Restore(p, entries)
		s.mu.Lock()
		s.confirmed = p
		s.hydrated = true
		s.status.Version = p.Version
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		s.fail(ctx, "hydrate", err)
	}
	return err
}

// ScheduleSave arms the debounced save, replacing a pending one.
func (s *Synchronizer) ScheduleSave() {
	if !s.Authenticated() {
		return
	}
	s.mu.Lock()
	s.status.Persisted = false
	s.mu.Unlock()
	if s.debounce.Schedule(s.submitSave) {
		metrics.RecordSaveCoalesced()
	}
}

func (s *Synchronizer) submitSave() {
	s.inFlight.Add(1)
	err := s.dispatch.Submit(context.Background(), queue.Job{
		PlayerID: s.playerID,
		Kind:     KindSave,
		Run: func(ctx context.Context) error {
			defer s.inFlight.Add(-1)
			return s.Save(ctx)
		},
	})
	if err != nil {
		s.inFlight.Add(-1)
		metrics.RecordSave("dropped")
		s.fail(context.Background(), "save", err)
	}
}

// Save writes the latest local snapshot. On a version conflict it rebases
// local onto the stored record and retries once.
func (s *Synchronizer) Save(ctx context.Context) error {
	if !s.Authenticated() {
		return ErrAnonymous
	}
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	confirmed := s.confirmed
	s.mu.Unlock()

	snap := s.local.Snapshot()
	if snap.XP == confirmed.XP && snap.ClickCount == confirmed.ClickCount && confirmed.Version > 0 {
		s.succeed(confirmed)
		metrics.RecordSave("unchanged")
		return nil
	}
	snap.PlayerID = s.playerID
	snap.Version = confirmed.Version

	version, err := s.upsert(ctx, snap)
	if errors.Is(err, repository.ErrVersionConflict) {
		metrics.RecordSave("conflict")
		remote, gerr := s.store.GetProgress(ctx, s.playerID)
		switch {
		case errors.Is(gerr, repository.ErrNotFound):
			remote = model.PlayerProgress{PlayerID: s.playerID}
		case gerr != nil:
			s.fail(ctx, "save", gerr)
			return fmt.Errorf("rebase: %w", gerr)
		}
		snap = s.local.Rebase(remote, confirmed)
		snap.PlayerID = s.playerID
		snap.Version = remote.Version
		s.mu.Lock()
		s.confirmed = remote
		s.mu.Unlock()
		version, err = s.upsert(ctx, snap)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidProgress) {
			metrics.RecordSave("invalid")
			s.warn(ctx, err)
			return err
		}
		metrics.RecordSave("failed")
		s.fail(ctx, "save", err)
		return err
	}

	snap.Version = version
	s.succeed(snap)
	metrics.RecordSave("saved")
	return nil
}

func (s *Synchronizer) upsert(ctx context.Context, p model.PlayerProgress) (int64, error) {
	if err := s.gate.Progress(p); err != nil {
		metrics.RecordValidationFailure("progress")
		return 0, err
	}
	return s.store.UpsertProgress(ctx, p)
}

// Flush runs a pending save now. Used when the session closes.
func (s *Synchronizer) Flush(ctx context.Context) error {
	if !s.debounce.Cancel() {
		return nil
	}
	return s.Save(ctx)
}

// PersistDrop validates d and inserts it off the caller's goroutine,
// refreshing the inventory once the insert is confirmed.
func (s *Synchronizer) PersistDrop(ctx context.Context, d model.Drop) error {
	if !s.Authenticated() {
		return ErrAnonymous
	}
	d.PlayerID = s.playerID
	if err := s.gate.Drop(d); err != nil {
		metrics.RecordValidationFailure("drop")
		s.warn(ctx, err)
		return err
	}
	err := s.dispatch.Submit(ctx, queue.Job{
		PlayerID: s.playerID,
		Kind:     KindDrop,
		Run: func(ctx context.Context) error {
			if _, err := s.store.InsertDrop(ctx, d); err != nil {
				s.fail(ctx, "insert drop", err)
				return err
			}
			return s.RefreshInventory(ctx)
		},
	})
	if err != nil {
		s.fail(ctx, "insert drop", err)
	}
	return err
}

// RefreshInventory replaces the local inventory with the newest stored
// page. Concurrent refreshes share one store call.
func (s *Synchronizer) RefreshInventory(ctx context.Context) error {
	if !s.Authenticated() {
		return ErrAnonymous
	}
	_, err, shared := s.flight.Do("inventory", func() (interface{}, error) {
		entries, err := s.store.ListInventory(ctx, s.playerID, s.pageSize)
		if err != nil {
			return nil, err
		}
		s.local.ReplaceInventory(entries)
		return nil, nil
	})
	switch {
	case err != nil:
		metrics.RecordInventoryRefresh("failed")
		s.fail(ctx, "refresh inventory", err)
	case shared:
		metrics.RecordInventoryRefresh("shared")
	default:
		metrics.RecordInventoryRefresh("ok")
	}
	return err
}

// Grant runs a store call that awarded xp on the server, lets apply credit
// the same xp locally, then reconciles confirmed and local state with the
// returned record.
func (s *Synchronizer) Grant(
	ctx context.Context,
	call func(ctx context.Context) (model.PlayerProgress, int64, error),
	apply func(xp int64),
) error {
	if !s.Authenticated() {
		return ErrAnonymous
	}
	s.io.Lock()
	defer s.io.Unlock()

	remote, xp, err := call(ctx)
	if err != nil {
		return err
	}
	apply(xp)

	s.mu.Lock()
	base := s.confirmed
	s.mu.Unlock()
	base.XP = addClamped(base.XP, xp)
	base.RankIndex = s.table.IndexForXP(base.XP)

	local := s.local.Rebase(remote, base)
	s.mu.Lock()
	s.confirmed = remote
	s.status.Version = remote.Version
	s.mu.Unlock()
	if local.XP != remote.XP || local.ClickCount != remote.ClickCount {
		s.ScheduleSave()
	}
	return nil
}

// Confirmed returns the last state acknowledged by the store.
func (s *Synchronizer) Confirmed() model.PlayerProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// Status returns the current sync status.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.Pending = s.debounce.Pending() || s.inFlight.Load() > 0
	if st.Pending {
		st.Persisted = false
	}
	return st
}

func (s *Synchronizer) succeed(p model.PlayerProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = p
	s.status.Version = p.Version
	s.status.Persisted = true
	s.status.LastError = ""
	s.status.Warning = ""
	s.status.LastSavedAt = time.Now()
}

func (s *Synchronizer) fail(ctx context.Context, op string, err error) {
	s.mu.Lock()
	s.status.Persisted = false
	s.status.LastError = fmt.Sprintf("%s: %v", op, err)
	s.mu.Unlock()
	s.log.Error(ctx, "Persistence failed; local state kept",
		logger.String("player_id", s.playerID),
		logger.String("operation", op),
		logger.Error(err))
}

func (s *Synchronizer) warn(ctx context.Context, err error) {
	s.mu.Lock()
	s.status.Warning = err.Error()
	s.mu.Unlock()
	s.log.Warn(ctx, "Outbound record rejected",
		logger.String("player_id", s.playerID),
		logger.Error(err))
}

// Rebase moves local onto remote, keeping the xp and clicks local gained
// over base. The rank index is re-derived from the result.
func Rebase(table *rank.Table, remote, base, local model.PlayerProgress) model.PlayerProgress {
	out := remote
	out.XP = addClamped(remote.XP, max(0, local.XP-base.XP))
	out.ClickCount = addClamped(remote.ClickCount, max(0, local.ClickCount-base.ClickCount))
	out.RankIndex = table.IndexForXP(out.XP)
	return out
}

func addClamped(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
