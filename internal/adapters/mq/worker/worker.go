// Package worker runs persistence jobs on a sharded pool so that jobs for
// the same player execute one at a time, in submission order.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/tapforge/internal/adapters/mq/queue"
	"github.com/okian/tapforge/pkg/logger"
	"github.com/okian/tapforge/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultQueueSize      = 256
	metricsUpdateInterval = 5 * time.Second
	jobTimeout            = 10 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
}

// Worker drains one shard queue.
type Worker interface {
	// Run processes jobs until the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker executes the jobs of one shard sequentially.
type InMemoryWorker struct {
	queue  Queue
	name   string
	active *atomic.Int64

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:  q,
		name:   "worker",
		active: new(atomic.Int64),
		done:   make(chan struct{}),
		logger: logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop. Queued jobs are still executed after ctx is
// canceled so pending saves are not lost on shutdown; each job gets its
// own bounded context.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for job := range w.queue.Dequeue() {
		w.process(ctx, job)
	}
}

// Shutdown waits for the worker to finish its queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs a single job.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	w.active.Add(1)
	defer func() {
		w.active.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	if err := w.run(jobCtx, job); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "job failed",
			logger.String("worker", w.name),
			logger.String("player_id", job.PlayerID),
			logger.String("kind", job.Kind),
			logger.Duration("queued", start.Sub(job.Enqueued)),
			logger.Error(err),
		)
	}
}

func (w *InMemoryWorker) run(ctx context.Context, job queue.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, p)
		}
	}()
	if job.Run == nil {
		return nil
	}
	return job.Run(ctx)
}

// Pool routes jobs to shards by player id. Each shard has its own bounded
// queue and a single worker.
type Pool struct {
	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker
	active  atomic.Int64

	stopOnce sync.Once
	stopped  atomic.Bool
	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of shardCount shards. A non-positive count uses
// the number of CPUs.
func NewPool(shardCount int, opts ...PoolOption) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}
	cfg := poolConfig{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		queues:   make([]*queue.InMemoryQueue, shardCount),
		workers:  make([]*InMemoryWorker, shardCount),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < shardCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(cfg.queueSize))
		p.workers[i] = NewInMemoryWorker(p.queues[i],
			WithName("worker-"+strconv.Itoa(i)),
			withActiveCounter(&p.active),
		)
	}

	metrics.UpdateWorkerCount(shardCount)
	metrics.UpdateQueueCapacity(shardCount * cfg.queueSize)
	metrics.UpdateQueueSize(0)

	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Shard returns the shard index serving playerID.
func (p *Pool) Shard(playerID string) int {
	return int(xxhash.Sum64String(playerID) % uint64(len(p.queues)))
}

// Submit enqueues job on its player's shard without blocking.
func (p *Pool) Submit(ctx context.Context, job queue.Job) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.queues[p.Shard(job.PlayerID)].Enqueue(ctx, job) {
		if p.stopped.Load() {
			return ErrStopped
		}
		return ErrQueueFull
	}
	return nil
}

// Pending returns the number of queued jobs across shards.
func (p *Pool) Pending() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len()
	}
	return n
}

// Shards returns the number of shards.
func (p *Pool) Shards() int { return len(p.queues) }

// startMetricsUpdater periodically publishes queue depth and busy workers.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	metrics.UpdateQueueSize(p.Pending())
	metrics.UpdateWorkerActiveCount(int(p.active.Load()))
}

// Shutdown stops accepting jobs, lets every shard drain and waits for the
// workers up to the context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		for _, q := range p.queues {
			if err := q.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
		close(p.shutdown)
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.updateMetrics()
	return firstErr
}
