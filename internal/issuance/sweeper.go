package issuance

import (
	"context"
	"time"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// Sweeper finds issued batches whose report never reached sent and hands
// them back to the queue. Enqueue after commit is best-effort, so this is
// what makes the issuance path eventually complete.
type Sweeper struct {
	log     *logger.Logger
	batches repos.BatchRepo
	reports repos.ReportRepo
	queue   domainagg.RenderQueue
	limit   int
}

func NewSweeper(log *logger.Logger, batchRepo repos.BatchRepo, reportRepo repos.ReportRepo, queue domainagg.RenderQueue) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		log:     log.With("component", "IssuanceSweeper"),
		batches: batchRepo,
		reports: reportRepo,
		queue:   queue,
		limit:   200,
	}
}

// Sweep returns the number of jobs enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.batches.ListByStatus(dbc, []batches.BatchStatus{batches.BatchIssued}, s.limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range rows {
		report, err := s.reports.GetByBatchID(dbc, b.ID)
		if err != nil {
			return n, err
		}
		if report == nil {
			s.log.Warn("issued batch without report", "batch_id", b.ID)
			continue
		}
		if err := s.queue.Enqueue(ctx, domainagg.RenderJob{ReportID: report.ID, BatchID: b.ID}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Every sweeps immediately and then on each tick until ctx is done.
func (s *Sweeper) Every(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.log.Warn("issuance sweep failed", "error", err)
		} else if n > 0 {
			s.log.Info("issuance sweep enqueued jobs", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
