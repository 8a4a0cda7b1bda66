package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
	"github.com/yungbote/batchflow-backend/internal/temporalx/temporalworker"
)

// Serve runs the HTTP API until ctx is cancelled. Without Temporal, render
// jobs are processed in this process as well.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startCollectors(ctx)

	srv := a.newServer()
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
		return srv.Run(ctx, a.Cfg.HTTPAddr)
	})
	if a.Issuance.Local != nil {
		a.runLocalIssuance(ctx, g)
	}
	a.watchRetryPolicies(ctx, g)
	return ignoreCanceled(g.Wait())
}

// Work runs the issuance worker: a Temporal worker when configured, the
// in-process queue otherwise. Both sweep issued batches on an interval.
func (a *App) Work(ctx context.Context) error {
	if a.Issuance.Pipeline == nil {
		return errors.New("worker requires RENDERER_URL and REPORT_GCS_BUCKET_NAME")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startCollectors(ctx)

	if a.temporal != nil {
		runner, err := temporalworker.NewRunner(a.Log, a.temporal, a.temporalCfg, a.Issuance.Pipeline, a.Cfg.WorkerConcurrency)
		if err != nil {
			return fmt.Errorf("init temporal worker: %w", err)
		}
		g.Go(func() error { return runner.Start(ctx) })
		g.Go(func() error {
			a.Issuance.Sweeper.Every(ctx, a.Cfg.SweepInterval)
			return nil
		})
	} else {
		a.runLocalIssuance(ctx, g)
	}
	a.watchRetryPolicies(ctx, g)
	return ignoreCanceled(g.Wait())
}

func (a *App) runLocalIssuance(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return a.Issuance.Local.Run(ctx) })
	g.Go(func() error {
		a.Issuance.Sweeper.Every(ctx, a.Cfg.SweepInterval)
		return nil
	})
}

func (a *App) watchRetryPolicies(ctx context.Context, g *errgroup.Group) {
	if a.Cfg.RetryPolicyFile == "" || a.Issuance.Executor == nil {
		return
	}
	w := resilience.NewPolicyWatcher(a.Log, a.Issuance.Executor, a.Cfg.RetryPolicyFile)
	g.Go(func() error { return ignoreCanceled(w.Run(ctx)) })
}

func (a *App) startCollectors(ctx context.Context) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB.DB())
	a.Metrics.StartBatchStatusCollector(ctx, a.Log, a.DB.DB())
	if a.redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.redis)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
