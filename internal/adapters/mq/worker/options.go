package worker

import (
	"sync/atomic"

	"github.com/okian/tapforge/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

func withActiveCounter(c *atomic.Int64) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.active = c
		}
	}
}

type poolConfig struct {
	queueSize int
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*poolConfig)

// WithQueueSize sets the capacity of each shard queue.
func WithQueueSize(n int) PoolOption {
	return func(c *poolConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}
