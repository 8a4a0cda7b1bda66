package issuewf

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/issuance"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Runner issuance.Runner
}

func (a *Activities) Run(ctx context.Context, in Input) (Output, error) {
	if a == nil || a.Runner == nil {
		return Output{}, temporal.NewNonRetryableApplicationError("issuewf: activity not configured", ErrTypeNonRetryable, nil)
	}
	stop := heartbeat(ctx, 15*time.Second)
	defer stop()

	res, err := a.Runner.Run(ctx, in.ReportID)
	if err != nil {
		if permanent(err) {
			return Output{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNonRetryable, err)
		}
		return Output{}, err
	}
	if a.Log != nil {
		a.Log.Info("report issued", "report_id", in.ReportID, "storage_ref", res.StorageRef, "replayed", res.Replayed)
	}
	return Output{
		ReportID:    res.ReportID,
		ContentHash: res.ContentHash,
		StorageRef:  res.StorageRef,
		Replayed:    res.Replayed,
	}, nil
}

// permanent errors cannot heal by re-running the pipeline.
func permanent(err error) bool {
	if errors.Is(err, issuance.ErrHashMismatch) {
		return true
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeNotFound, domainagg.CodeValidation, domainagg.CodeInvalidTransition,
		domainagg.CodeImmutableViolation, domainagg.CodeUnauthorized:
		return true
	default:
		return false
	}
}

func heartbeat(ctx context.Context, every time.Duration) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
