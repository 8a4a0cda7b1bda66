package issuewf

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow drives one report through the issuance pipeline. Retries of the
// whole pipeline happen here; the pipeline's own executor retries the
// individual render and store calls.
func Workflow(ctx workflow.Context, in Input) (Output, error) {
	if in.ReportID == uuid.Nil {
		return Output{}, fmt.Errorf("issuewf: missing report_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        5 * time.Minute,
			MaximumAttempts:        10,
			NonRetryableErrorTypes: []string{ErrTypeNonRetryable},
		},
	})

	var out Output
	if err := workflow.ExecuteActivity(ctx, ActivityRun, in).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Error("report issuance failed", "report_id", in.ReportID.String(), "error", err)
		return Output{}, err
	}
	return out, nil
}
