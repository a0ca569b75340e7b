// Package ratelimit gates how often a tap may register for one session.
package ratelimit

import "time"

// DefaultInterval bounds tap throughput to 10 per second.
const DefaultInterval = 100 * time.Millisecond

// TapLimiter accepts a call only if at least the minimum interval elapsed
// since the last accepted call. Rejected calls leave no trace; there is no
// queue and no backlog. It is not safe for concurrent use; the owning
// session serializes access.
type TapLimiter struct {
	intervalMs int64
	lastMs     int64
	accepted   bool
}

// NewTapLimiter creates a limiter with the given minimum interval. Values
// below one millisecond fall back to DefaultInterval.
func NewTapLimiter(interval time.Duration) *TapLimiter {
	if interval < time.Millisecond {
		interval = DefaultInterval
	}
	return &TapLimiter{intervalMs: interval.Milliseconds()}
}

// Accept reports whether a tap at timestampMs registers. Timestamps earlier
// than the last accepted one are rejected.
func (l *TapLimiter) Accept(timestampMs int64) bool {
	if l.accepted && timestampMs-l.lastMs < l.intervalMs {
		return false
	}
	l.lastMs = timestampMs
	l.accepted = true
	return true
}
