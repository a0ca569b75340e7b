package progress

import "math/rand"

// Option applies a configuration option to the Accumulator.
type Option func(*Accumulator)

// WithDeltaRange sets the inclusive per-tap XP range. Invalid ranges are
// ignored.
func WithDeltaRange(minDelta, maxDelta int64) Option {
	return func(a *Accumulator) {
		if minDelta >= 0 && maxDelta >= minDelta {
			a.minDelta = minDelta
			a.maxDelta = maxDelta
		}
	}
}

// WithSeed makes the per-tap draw deterministic.
func WithSeed(seed int64) Option {
	return func(a *Accumulator) {
		a.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic seed for reproducible testing
	}
}

// WithDeltaFunc replaces the random draw entirely.
func WithDeltaFunc(fn func() int64) Option {
	return func(a *Accumulator) {
		if fn != nil {
			a.delta = fn
		}
	}
}
