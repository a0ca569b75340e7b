package repository

import (
	"time"

	"github.com/google/uuid"
)

type storeOptions struct {
	now            func() time.Time
	newID          func() string
	maxConns       int32
	connectTimeout time.Duration
}

func defaultStoreOptions() storeOptions {
	return storeOptions{
		now:            func() time.Time { return time.Now().UTC() },
		newID:          func() string { return uuid.NewString() },
		connectTimeout: 10 * time.Second,
	}
}

// Option applies a configuration option to a store.
type Option func(*storeOptions)

// WithClock overrides the time source used for crafted entries.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how entry ids are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(o *storeOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithMaxConns caps the PostgreSQL pool size.
func WithMaxConns(n int32) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithConnectTimeout bounds connecting and applying the schema.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *storeOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}
