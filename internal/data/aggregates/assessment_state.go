package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

type AssessmentAggregateDeps struct {
	Base BaseDeps

	Batches     repos.BatchRepo
	Assessments repos.AssessmentRepo
	Employees   repos.EmployeeRepo
	Responses   repos.ResponseRepo

	Audit      *AuditTrail
	Authorizer domainagg.Authorizer
	Notifier   domainagg.Notifier
}

type assessmentAggregate struct {
	deps AssessmentAggregateDeps
	ctrl batchController
	sync snapshotSync
}

func NewAssessmentAggregate(deps AssessmentAggregateDeps) domainagg.AssessmentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &assessmentAggregate{
		deps: deps,
		ctrl: newBatchController(deps.Base, deps.Batches, deps.Audit, deps.Notifier),
		sync: snapshotSync{employees: deps.Employees, audit: deps.Audit},
	}
}

func (a *assessmentAggregate) Contract() domainagg.Contract {
	return domainagg.AssessmentAggregateContract
}

func (a *assessmentAggregate) configured(op string) error {
	if a.deps.Batches == nil || a.deps.Assessments == nil || a.deps.Employees == nil || a.deps.Responses == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "assessment repos not configured", nil)
	}
	return nil
}

func (a *assessmentAggregate) TransitionAssessment(ctx context.Context, in domainagg.TransitionAssessmentInput) (domainagg.TransitionAssessmentResult, error) {
	const op = "Batches.Assessment.TransitionAssessment"
	var out domainagg.TransitionAssessmentResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.AssessmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}
	if in.To.IsZero() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing target status", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		row, err := a.deps.Assessments.LockByID(uow.Context, in.AssessmentID)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(op, "assessment")
		}
		if err := a.authorize(uow, *row, in.To == batches.AssessmentInactivated); err != nil {
			return err
		}
		res, err := a.transition(uow, *row, in.To, in.Reason)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// transition moves one locked assessment and, for terminal targets, runs the
// snapshot sync and batch recomputation in the same unit of work.
func (a *assessmentAggregate) transition(uow *UnitOfWork, row batches.Assessment, to batches.AssessmentStatus, reason string) (domainagg.TransitionAssessmentResult, error) {
	var out domainagg.TransitionAssessmentResult
	from := row.Status
	if !batches.CanTransitionAssessment(from, to) {
		return out, invalidTransition(uow.Op, fmt.Sprintf("assessment cannot move from %s to %s", from, to))
	}

	now := a.deps.Base.Now()
	updates := map[string]any{"status": to, "updated_at": now}
	next := row
	next.Status = to
	next.UpdatedAt = now

	switch to {
	case batches.AssessmentCompleted:
		emp, err := a.deps.Employees.GetByID(uow.Context, row.EmployeeID)
		if err != nil {
			return out, err
		}
		if emp == nil {
			return out, notFound(uow.Op, "employee")
		}
		keys, err := a.deps.Responses.ListKeys(uow.Context, row.ID)
		if err != nil {
			return out, err
		}
		if !batches.QuestionnaireFor(emp.Tier).Complete(keys) {
			return out, batches.ErrIncompleteResponses
		}
		updates["completed_at"] = now
		next.CompletedAt = &now
	case batches.AssessmentInactivated:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return out, domainagg.NewError(domainagg.CodeValidation, uow.Op, "inactivation requires a reason", nil)
		}
		actorID := uow.Actor.ID
		updates["inactivated_at"] = now
		updates["inactivation_reason"] = reason
		updates["inactivated_by"] = actorID
		next.InactivatedAt = &now
		next.InactivationReason = &reason
		next.InactivatedBy = &actorID
	}

	ok, err := a.deps.Base.CASGuard.UpdateByStatus(uow.Context, batches.Assessment{}.TableName(), row.ID, []string{from.String()}, updates)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, invalidTransition(uow.Op, "assessment status changed concurrently")
	}

	a.deps.Audit.Record(uow, audit.Record{
		Action:       audit.ActionAssessmentTransition,
		ResourceType: audit.ResourceAssessment,
		ResourceID:   row.ID,
		Before:       map[string]any{"status": from},
		After:        map[string]any{"status": to},
		Metadata:     map[string]any{"batch_id": row.BatchID.String(), "reason": reason},
	})
	out.Assessment = next

	if !to.Terminal() {
		return out, nil
	}
	updated, _, err := a.sync.apply(uow, next)
	if err != nil {
		return out, err
	}
	out.SnapshotUpdated = updated
	rec, err := a.ctrl.recompute(uow, row.BatchID)
	if err != nil {
		return out, err
	}
	out.Batch = rec
	return out, nil
}

// authorize lets employees act on their own assessment and managers act on
// assessments of batches they own. Inactivation is manager-only.
func (a *assessmentAggregate) authorize(uow *UnitOfWork, row batches.Assessment, managerOnly bool) error {
	actor := uow.Actor
	if actor.Role == audit.RoleEmployee {
		if managerOnly || actor.ID != row.EmployeeID {
			return unauthorized(uow.Op, "employee may only answer their own assessment")
		}
		return nil
	}
	if managerOnly && !actor.HasRole(audit.RoleAdmin, audit.RoleClinicManager, audit.RoleEntityManager) {
		return unauthorized(uow.Op, "role cannot inactivate assessments")
	}
	b, err := a.deps.Batches.GetByID(uow.Context, row.BatchID)
	if err != nil {
		return err
	}
	if b == nil {
		return notFound(uow.Op, "batch")
	}
	owner, err := b.Owner()
	if err != nil {
		return err
	}
	if !authorized(a.deps.Authorizer, actor, owner) {
		return unauthorized(uow.Op, "actor is not authorized for batch owner")
	}
	return nil
}

func (a *assessmentAggregate) RecordResponses(ctx context.Context, in domainagg.RecordResponsesInput) (domainagg.RecordResponsesResult, error) {
	const op = "Batches.Assessment.RecordResponses"
	var out domainagg.RecordResponsesResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.AssessmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}
	if len(in.Responses) == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "no responses", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		row, err := a.deps.Assessments.LockByID(uow.Context, in.AssessmentID)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(op, "assessment")
		}
		if err := a.authorize(uow, *row, false); err != nil {
			return err
		}
		if row.Status.Terminal() {
			return invalidTransition(op, fmt.Sprintf("responses are frozen once the assessment is %s", row.Status))
		}
		emp, err := a.deps.Employees.GetByID(uow.Context, row.EmployeeID)
		if err != nil {
			return err
		}
		if emp == nil {
			return notFound(op, "employee")
		}
		q := batches.QuestionnaireFor(emp.Tier)

		byKey := map[batches.QuestionKey]*batches.Response{}
		ordered := make([]*batches.Response, 0, len(in.Responses))
		for _, r := range in.Responses {
			key := batches.QuestionKey{Group: r.Group, Item: strings.ToUpper(strings.TrimSpace(r.Item))}
			if !q.Contains(key) {
				return fmt.Errorf("group %d item %q: %w", key.Group, key.Item, batches.ErrUnknownQuestion)
			}
			if !batches.ValidAnswer(r.Value) {
				return fmt.Errorf("group %d item %q value %d: %w", key.Group, key.Item, r.Value, batches.ErrInvalidAnswer)
			}
			if prev, ok := byKey[key]; ok {
				prev.Value = r.Value
				continue
			}
			resp := &batches.Response{AssessmentID: row.ID, Group: key.Group, Item: key.Item, Value: r.Value}
			byKey[key] = resp
			ordered = append(ordered, resp)
		}
		if err := a.deps.Responses.Upsert(uow.Context, ordered); err != nil {
			return err
		}

		current := *row
		if current.Status == batches.AssessmentStarted {
			res, err := a.transition(uow, current, batches.AssessmentInProgress, "")
			if err != nil {
				return err
			}
			current = res.Assessment
		}

		keys, err := a.deps.Responses.ListKeys(uow.Context, row.ID)
		if err != nil {
			return err
		}
		answered := 0
		for _, k := range keys {
			if q.Contains(k) {
				answered++
			}
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionResponsesRecorded,
			ResourceType: audit.ResourceAssessment,
			ResourceID:   row.ID,
			Metadata:     map[string]any{"written": len(ordered), "answered": answered, "expected": q.Size()},
		})

		out.Answered = answered
		out.Expected = q.Size()
		if q.Complete(keys) {
			res, err := a.transition(uow, current, batches.AssessmentCompleted, "")
			if err != nil {
				return err
			}
			current = res.Assessment
			out.AutoCompleted = true
			out.Transition = &res
		}
		out.Assessment = current
		return nil
	})
	return out, err
}

func (a *assessmentAggregate) SyncEmployeeSnapshot(ctx context.Context, in domainagg.SyncSnapshotInput) (domainagg.SyncSnapshotResult, error) {
	const op = "Batches.Assessment.SyncEmployeeSnapshot"
	var out domainagg.SyncSnapshotResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.AssessmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleAdmin, audit.RoleSystem) {
			return unauthorized(op, "snapshot repair is restricted to admins and the system")
		}
		row, err := a.deps.Assessments.GetByID(uow.Context, in.AssessmentID)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(op, "assessment")
		}
		updated, snap, err := a.sync.apply(uow, *row)
		if err != nil {
			return err
		}
		out = domainagg.SyncSnapshotResult{EmployeeID: row.EmployeeID, Updated: updated, Snapshot: snap}
		return nil
	})
	return out, err
}
