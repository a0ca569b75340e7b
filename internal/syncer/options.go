package syncer

import (
	"time"

	"github.com/okian/tapforge/pkg/logger"
)

// Defaults for a synchronizer.
const (
	DefaultSaveDelay = 5 * time.Second
	DefaultPageSize  = 50
)

type options struct {
	delay    time.Duration
	pageSize int
	dispatch Dispatcher
	gate     *Gate
	log      logger.Logger
}

func defaultOptions() options {
	return options{
		delay:    DefaultSaveDelay,
		pageSize: DefaultPageSize,
		log:      logger.Get().Named("syncer"),
	}
}

// Option configures a Synchronizer.
type Option func(*options)

// WithSaveDelay sets the debounce quiet window.
func WithSaveDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithPageSize sets how many inventory entries hydrate and refresh load.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithDispatcher sets where saves and drop inserts run. Without one they
// run on the calling goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

// WithGate shares a validation gate between synchronizers.
func WithGate(g *Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
