// Package worker runs the asynchronous ingest pool that drains the
// job queue into the store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.IngestJob

// Ingester commits a validated batch. Satisfied by the app service.
type Ingester interface {
	Ingest(ctx context.Context, key model.WeekKey, category model.Category, batch model.Batch, baseSeq uint64) (model.CommitResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes queued ingest jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// seenSet suppresses duplicate job ids across the pool. A job id is
// reserved before processing and released again on failure so a
// producer retry is not silently dropped.
type seenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{seen: make(map[string]struct{})}
}

// reserve marks an id as in-flight and reports whether it was new.
func (s *seenSet) reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *seenSet) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
}

// InMemoryWorker implements Worker for processing ingest jobs.
type InMemoryWorker struct {
	queue    Queue
	ingester Ingester
	seen     *seenSet
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, ingester Ingester, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		ingester: ingester,
		seen:     newSeenSet(),
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob handles a single ingest job.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordJobLatency(float64(time.Since(start).Milliseconds()))
	}()

	if job.SchemaVersion != model.SchemaVersion {
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", "schema_version")
		return fmt.Errorf("job %s: unsupported schema version %d", job.JobID, job.SchemaVersion)
	}

	if job.JobID != "" && !w.seen.reserve(job.JobID) {
		w.logger.Debug(ctx, "duplicate job dropped", logger.String("jobID", job.JobID))
		return nil
	}

	res, err := w.ingester.Ingest(ctx, job.Key, job.Category, job.Batch, job.BaseSeq)
	if err != nil {
		if job.JobID != "" {
			w.seen.release(job.JobID)
		}
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", "ingest_error")
		w.logger.Error(ctx, "ingest failed for job",
			logger.String("jobID", job.JobID),
			logger.String("key", job.Key.String()),
			logger.String("category", job.Category.String()),
			logger.Error(err),
		)
		return fmt.Errorf("ingest job %s: %w", job.JobID, err)
	}

	metrics.RecordJobProcessed()
	w.logger.Debug(ctx, "job committed",
		logger.String("jobID", job.JobID),
		logger.String("key", job.Key.String()),
		logger.String("category", job.Category.String()),
		logger.Uint64("seq", res.Seq),
		logger.Int("warnings", len(res.Warnings)),
	)
	return nil
}

// Pool manages multiple workers sharing one duplicate-suppression set.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	ingester Ingester

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a worker pool.
func NewPool(workerCount int, queue Queue, ingester Ingester) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		ingester: ingester,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	seen := newSeenSet()
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			ingester,
			WithName("worker-"+strconv.Itoa(i)),
			withSeenSet(seen),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		close(worker.shutdown)
	}
	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue, lets the workers drain it, then stops them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return nil
}
