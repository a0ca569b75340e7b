// Package progress converts accepted taps and rewards into XP and drives the
// rank state machine.
package progress

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

// Default accumulator configuration constants.
const (
	DefaultMinDelta = 10
	DefaultMaxDelta = 14
)

// RankUp is emitted once per rank crossed.
type RankUp struct {
	From int
	To   int
	Rank rank.Definition
}

// Outcome describes the effect of one tap or reward.
type Outcome struct {
	Delta    int64
	Progress model.PlayerProgress
	RankUps  []RankUp
}

// Accumulator owns the local PlayerProgress of one session. It is not safe
// for concurrent use; the owning session serializes access.
type Accumulator struct {
	table    *rank.Table
	progress model.PlayerProgress
	minDelta int64
	maxDelta int64
	delta    func() int64
	rng      *rand.Rand
}

// NewAccumulator creates an accumulator at rank 0 with zero XP.
func NewAccumulator(table *rank.Table, opts ...Option) *Accumulator {
	a := &Accumulator{
		table:    table,
		minDelta: DefaultMinDelta,
		maxDelta: DefaultMaxDelta,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // gameplay randomness, not security
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.delta == nil {
		a.delta = a.uniformDelta
	}
	return a
}

func (a *Accumulator) uniformDelta() int64 {
	return a.minDelta + a.rng.Int63n(a.maxDelta-a.minDelta+1)
}

// Tap registers one accepted tap: increments the click count, adds a random
// delta and advances the rank as far as the new XP allows.
func (a *Accumulator) Tap() Outcome {
	d := a.delta()
	a.progress.ClickCount++
	ups := a.apply(d)
	return Outcome{Delta: d, Progress: a.progress, RankUps: ups}
}

// Reward adds XP that did not come from a tap (crafting, external rewards).
// The click count is left untouched.
func (a *Accumulator) Reward(amount int64) Outcome {
	ups := a.apply(amount)
	return Outcome{Delta: amount, Progress: a.progress, RankUps: ups}
}

// apply adds delta and loops the threshold check so tightly tuned tables
// never skip a rank. A negative or overflowing delta is a programming
// defect and panics before any state changes.
func (a *Accumulator) apply(delta int64) []RankUp {
	if delta < 0 {
		panic(fmt.Sprintf("progress: negative xp delta %d", delta))
	}
	if a.progress.XP > math.MaxInt64-delta {
		panic(fmt.Sprintf("progress: xp overflow adding %d to %d", delta, a.progress.XP))
	}
	a.progress.XP += delta

	var ups []RankUp
	for {
		next, ok := a.table.Next(a.progress.RankIndex)
		if !ok || a.progress.XP < next.XPThreshold {
			break
		}
		ups = append(ups, RankUp{From: a.progress.RankIndex, To: next.Index, Rank: next})
		a.progress.RankIndex = next.Index
	}
	return ups
}

// Restore replaces the local state, recomputing the rank from XP so the two
// can never diverge. No events are emitted.
func (a *Accumulator) Restore(p model.PlayerProgress) {
	if p.XP < 0 {
		p.XP = 0
	}
	if p.ClickCount < 0 {
		p.ClickCount = 0
	}
	p.RankIndex = a.table.IndexForXP(p.XP)
	a.progress = p
}

// SetVersion records the store version of the local state.
func (a *Accumulator) SetVersion(v int64) {
	a.progress.Version = v
}

// Progress returns a copy of the local state.
func (a *Accumulator) Progress() model.PlayerProgress { return a.progress }

// Rank returns the current rank definition.
func (a *Accumulator) Rank() rank.Definition { return a.table.At(a.progress.RankIndex) }

// AtMaxRank reports whether the terminal rank has been reached.
func (a *Accumulator) AtMaxRank() bool { return a.progress.RankIndex == a.table.Len()-1 }

// ColorTier returns the cosmetic tier past the last rank.
func (a *Accumulator) ColorTier() int { return a.table.ColorTier(a.progress.XP) }

// Table returns the rank table in use.
func (a *Accumulator) Table() *rank.Table { return a.table }
