package issuewf

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
)

type fakeRun struct {
	temporalsdkclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "run-1" }

type spyStarter struct {
	opts []temporalsdkclient.StartWorkflowOptions
	args []interface{}
	err  error
}

func (s *spyStarter) ExecuteWorkflow(_ context.Context, o temporalsdkclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error) {
	s.opts = append(s.opts, o)
	s.args = append(s.args, args...)
	if s.err != nil {
		return nil, s.err
	}
	return fakeRun{id: o.ID}, nil
}

func TestQueueStartsWorkflowPerReport(t *testing.T) {
	spy := &spyStarter{}
	q, err := NewQueue(nil, spy, "bf-test")
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	job := domainagg.RenderJob{ReportID: uuid.New(), BatchID: uuid.New()}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(spy.opts) != 1 {
		t.Fatalf("starts: want=1 got=%d", len(spy.opts))
	}
	o := spy.opts[0]
	if o.ID != "report-issue-"+job.ReportID.String() || o.TaskQueue != "bf-test" {
		t.Fatalf("options: got=%+v", o)
	}
	if o.WorkflowIDReusePolicy != enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY || !o.WorkflowExecutionErrorWhenAlreadyStarted {
		t.Fatalf("duplicate policy: got=%+v", o)
	}
	in, ok := spy.args[0].(Input)
	if !ok || in.ReportID != job.ReportID || in.BatchID != job.BatchID {
		t.Fatalf("input: got=%#v", spy.args[0])
	}
}

func TestQueueAcceptsAlreadyStarted(t *testing.T) {
	spy := &spyStarter{err: serviceerror.NewWorkflowExecutionAlreadyStarted("exists", "req", "run")}
	q, _ := NewQueue(nil, spy, "bf-test")
	if err := q.Enqueue(context.Background(), domainagg.RenderJob{ReportID: uuid.New()}); err != nil {
		t.Fatalf("Enqueue duplicate: %v", err)
	}

	spy.err = errors.New("unavailable")
	if err := q.Enqueue(context.Background(), domainagg.RenderJob{ReportID: uuid.New()}); err == nil {
		t.Fatalf("Enqueue: expected error")
	}
}
