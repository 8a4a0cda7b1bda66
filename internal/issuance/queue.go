package issuance

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

var ErrQueueClosed = errors.New("render queue closed")

// Runner is the part of Pipeline the queue needs.
type Runner interface {
	Run(ctx context.Context, reportID uuid.UUID) (Result, error)
}

// LocalQueue runs render jobs in-process on a fixed number of workers. Jobs
// still buffered at shutdown are dropped; the sweeper re-enqueues them on the
// next start because their batches stay issued.
type LocalQueue struct {
	log     *logger.Logger
	runner  Runner
	workers int
	jobs    chan domainagg.RenderJob

	mu       sync.Mutex
	closed   bool
	inflight map[uuid.UUID]struct{}
}

var _ domainagg.RenderQueue = (*LocalQueue)(nil)

func NewLocalQueue(log *logger.Logger, runner Runner, workers, buffer int) *LocalQueue {
	if log == nil {
		log = logger.Nop()
	}
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalQueue{
		log:      log.With("component", "LocalRenderQueue"),
		runner:   runner,
		workers:  workers,
		jobs:     make(chan domainagg.RenderJob, buffer),
		inflight: map[uuid.UUID]struct{}{},
	}
}

// Enqueue blocks while the buffer is full. A report already queued or running
// is accepted without a second job.
func (q *LocalQueue) Enqueue(ctx context.Context, job domainagg.RenderJob) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if _, dup := q.inflight[job.ReportID]; dup {
		q.mu.Unlock()
		return nil
	}
	q.inflight[job.ReportID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		q.done(job.ReportID)
		return ctx.Err()
	}
}

// Run processes jobs until ctx is cancelled. Job failures are logged and do
// not stop the workers.
func (q *LocalQueue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					q.process(ctx, worker, job)
				}
			}
		})
	}
	err := g.Wait()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return err
}

func (q *LocalQueue) process(ctx context.Context, worker int, job domainagg.RenderJob) {
	defer q.done(job.ReportID)
	res, err := q.runner.Run(ctx, job.ReportID)
	if err != nil {
		q.log.Warn("render job failed",
			"worker", worker,
			"report_id", job.ReportID,
			"batch_id", job.BatchID,
			"error", err,
		)
		return
	}
	q.log.Info("render job done",
		"worker", worker,
		"report_id", job.ReportID,
		"storage_ref", res.StorageRef,
		"replayed", res.Replayed,
	)
}

func (q *LocalQueue) done(id uuid.UUID) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
}
