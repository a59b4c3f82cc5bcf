package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	applog "github.com/hokuto-m/enrichd/internal/log"
	"github.com/hokuto-m/enrichd/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull indicates the queue is at capacity; the caller sheds load.
var ErrQueueFull = errors.New("enrichment queue is full")

// ErrPoolClosed indicates the pool no longer accepts jobs.
var ErrPoolClosed = errors.New("enrichment pool is shut down")

// jobTimeout bounds a single run. Web search plus two API round trips stays
// well under this; anything longer is stuck.
const jobTimeout = 3 * time.Minute

// Pool drains a bounded queue of jobs with a fixed set of workers.
type Pool struct {
	pipeline *Pipeline
	jobs     chan Job
	workers  int

	mu     sync.Mutex
	closed bool

	g *errgroup.Group
}

// NewPool creates a pool; Start must be called before Enqueue.
func NewPool(pipeline *Pipeline, workers, queueSize int) *Pool {
	return &Pool{
		pipeline: pipeline,
		jobs:     make(chan Job, queueSize),
		workers:  workers,
	}
}

// Start launches the workers. Jobs run under their own timeout rather than a
// caller context, so accepted work survives the intake shutting down and the
// drain is bounded only by Shutdown's deadline.
func (p *Pool) Start() {
	p.g = new(errgroup.Group)

	logger := applog.WithComponent("pool")
	for i := 0; i < p.workers; i++ {
		p.g.Go(func() error {
			for job := range p.jobs {
				metrics.SetQueueDepth(len(p.jobs))
				runCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
				_ = p.pipeline.Run(runCtx, job) // terminal outcome already recorded
				cancel()
			}
			return nil
		})
	}
	logger.Info().
		Str("event", "pool.started").
		Int("workers", p.workers).
		Int("queue_size", cap(p.jobs)).
		Msg("worker pool started")
}

// Enqueue adds a job without blocking.
func (p *Pool) Enqueue(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		metrics.SetQueueDepth(len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth reports the number of queued jobs.
func (p *Pool) Depth() int { return len(p.jobs) }

// Capacity reports the queue capacity.
func (p *Pool) Capacity() int { return cap(p.jobs) }

// Shutdown stops intake and waits for queued jobs to finish, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
