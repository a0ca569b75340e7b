package drops

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBonusProbability sets the per-tap bonus chance. Values outside [0,1]
// are ignored.
func WithBonusProbability(p float64) Option {
	return func(e *Engine) {
		if p >= 0 && p <= 1 {
			e.probability = p
		}
	}
}

// WithSeed makes the bonus roll deterministic.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic seed for reproducible testing
	}
}

// WithClock overrides the time source used for collectedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
