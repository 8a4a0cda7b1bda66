package issuewf

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type starter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// Queue starts one durable workflow per report.
type Queue struct {
	log       *logger.Logger
	tc        starter
	taskQueue string
}

var _ domainagg.RenderQueue = (*Queue)(nil)

func NewQueue(log *logger.Logger, tc starter, taskQueue string) (*Queue, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Queue{log: log.With("component", "TemporalRenderQueue"), tc: tc, taskQueue: taskQueue}, nil
}

// Enqueue treats an already-running workflow for the report as success.
func (q *Queue) Enqueue(ctx context.Context, job domainagg.RenderJob) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       WorkflowID(job.ReportID),
		TaskQueue:                                q.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := q.tc.ExecuteWorkflow(ctx, opts, WorkflowName, Input{ReportID: job.ReportID, BatchID: job.BatchID})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			q.log.Debug("issuance workflow already started", "report_id", job.ReportID)
			return nil
		}
		return fmt.Errorf("start issuance workflow: %w", err)
	}
	q.log.Info("issuance workflow started", "report_id", job.ReportID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
