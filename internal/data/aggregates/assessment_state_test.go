package aggregates_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

func TestRecordResponsesPartialThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBatch(t)
	a := f.release(t, b.ID, f.seedEmployee(t).ID)

	all := fullResponses()
	// Lowercase items and a repeated key are normalized and deduplicated.
	first := append(slices.Clone(all[:10]), domainagg.ResponseInput{Group: all[0].Group, Item: "q1", Value: 75})

	res, err := f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{Actor: f.manager, AssessmentID: a.ID, Responses: first})
	if err != nil {
		t.Fatalf("RecordResponses partial: %v", err)
	}
	if res.AutoCompleted || res.Answered != 10 || res.Expected != len(all) {
		t.Fatalf("partial: want answered=10 expected=%d got=%+v", len(all), res)
	}
	if all[10].Item == "q1" {
		t.Fatalf("partial batch overwrote the remaining answers")
	}
	if res.Assessment.Status != batches.AssessmentInProgress {
		t.Fatalf("partial status: want=in_progress got=%s", res.Assessment.Status)
	}

	_, err = f.assessments.TransitionAssessment(ctx, domainagg.TransitionAssessmentInput{
		Actor: f.manager, AssessmentID: a.ID, To: batches.AssessmentCompleted,
	})
	wantCode(t, "complete with partial set", err, domainagg.CodeInvalidTransition)

	res, err = f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{Actor: f.manager, AssessmentID: a.ID, Responses: all[10:]})
	if err != nil {
		t.Fatalf("RecordResponses rest: %v", err)
	}
	if !res.AutoCompleted || res.Assessment.Status != batches.AssessmentCompleted || res.Assessment.CompletedAt == nil {
		t.Fatalf("rest: want auto-completed got=%+v", res)
	}
	if res.Transition == nil || !res.Transition.SnapshotUpdated {
		t.Fatalf("rest: want snapshot sync in the same unit got=%+v", res.Transition)
	}

	_, err = f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{Actor: f.manager, AssessmentID: a.ID, Responses: all[:1]})
	wantCode(t, "answer after completion", err, domainagg.CodeInvalidTransition)

	stored, err := f.repos.Responses.ListByAssessmentID(f.dbc(), a.ID)
	if err != nil {
		t.Fatalf("ListByAssessmentID: %v", err)
	}
	if len(stored) != len(all) {
		t.Fatalf("stored responses: want=%d got=%d", len(all), len(stored))
	}
}

func TestRecordResponsesRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBatch(t)
	a := f.release(t, b.ID, f.seedEmployee(t).ID)

	_, err := f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{
		Actor: f.manager, AssessmentID: a.ID,
		Responses: []domainagg.ResponseInput{{Group: 11, Item: "Q1", Value: 50}},
	})
	wantCode(t, "unknown question", err, domainagg.CodeValidation)

	_, err = f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{
		Actor: f.manager, AssessmentID: a.ID,
		Responses: []domainagg.ResponseInput{{Group: 1, Item: "Q1", Value: 42}},
	})
	wantCode(t, "off-scale value", err, domainagg.CodeValidation)

	if n := f.count(t, &batches.Response{}, "assessment_id = ?", a.ID); n != 0 {
		t.Fatalf("responses after rejected writes: want=0 got=%d", n)
	}
}

func TestAssessmentTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBatch(t)
	emp := f.seedEmployee(t)
	a := f.release(t, b.ID, emp.ID)

	self := audit.ActorContext{ID: emp.ID, Role: audit.RoleEmployee}
	other := audit.ActorContext{ID: uuid.New(), Role: audit.RoleEmployee}

	_, err := f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{Actor: other, AssessmentID: a.ID, Responses: fullResponses()[:1]})
	wantCode(t, "other employee", err, domainagg.CodeUnauthorized)

	_, err = f.assessments.TransitionAssessment(ctx, domainagg.TransitionAssessmentInput{
		Actor: self, AssessmentID: a.ID, To: batches.AssessmentInactivated, Reason: "quit",
	})
	wantCode(t, "employee inactivating", err, domainagg.CodeUnauthorized)

	_, err = f.assessments.TransitionAssessment(ctx, domainagg.TransitionAssessmentInput{
		Actor: f.manager, AssessmentID: a.ID, To: batches.AssessmentInactivated,
	})
	wantCode(t, "inactivation without reason", err, domainagg.CodeValidation)

	res, err := f.assessments.RecordResponses(ctx, domainagg.RecordResponsesInput{Actor: self, AssessmentID: a.ID, Responses: fullResponses()})
	if err != nil {
		t.Fatalf("employee answering own assessment: %v", err)
	}
	if !res.AutoCompleted {
		t.Fatalf("employee answering own assessment: want auto-complete")
	}

	_, err = f.assessments.TransitionAssessment(ctx, domainagg.TransitionAssessmentInput{
		Actor: f.manager, AssessmentID: a.ID, To: batches.AssessmentInactivated, Reason: "late",
	})
	wantCode(t, "terminal to terminal", err, domainagg.CodeInvalidTransition)
}

func TestSnapshotNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.seedEmployee(t)

	first := f.createBatch(t)
	second := f.createBatch(t)
	newer := f.release(t, first.ID, emp.ID)
	older := f.release(t, second.ID, emp.ID)

	t1 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.clock.Set(t1)
	f.complete(t, newer.ID)

	// The second assessment finishes with an earlier clock reading.
	f.clock.Set(t1.Add(-48 * time.Hour))
	res := f.inactivate(t, older.ID)
	if res.SnapshotUpdated {
		t.Fatalf("older terminal assessment advanced the snapshot")
	}

	got, err := f.repos.Employees.GetByID(f.dbc(), emp.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LatestAssessmentID == nil || *got.LatestAssessmentID != newer.ID {
		t.Fatalf("snapshot: want=%s got=%v", newer.ID, got.LatestAssessmentID)
	}
	if got.LatestAssessmentStatus != batches.AssessmentCompleted {
		t.Fatalf("snapshot status: want=completed got=%s", got.LatestAssessmentStatus)
	}

	for _, id := range []uuid.UUID{older.ID, newer.ID} {
		sync, err := f.assessments.SyncEmployeeSnapshot(ctx, domainagg.SyncSnapshotInput{Actor: f.system, AssessmentID: id})
		if err != nil {
			t.Fatalf("SyncEmployeeSnapshot(%s): %v", id, err)
		}
		if sync.Updated {
			t.Fatalf("SyncEmployeeSnapshot(%s): want no-op", id)
		}
	}

	_, err = f.assessments.SyncEmployeeSnapshot(ctx, domainagg.SyncSnapshotInput{Actor: f.manager, AssessmentID: newer.ID})
	wantCode(t, "manager repair", err, domainagg.CodeUnauthorized)
}
