package aggregates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

const DefaultEmergencyReasonMinLength = 20

// batchController is the recomputation step shared by every write path that
// changes assessment counts.
type batchController struct {
	base     BaseDeps
	batches  repos.BatchRepo
	audit    *AuditTrail
	notifier domainagg.Notifier
	log      *logger.Logger
}

func newBatchController(base BaseDeps, batchRepo repos.BatchRepo, trail *AuditTrail, notifier domainagg.Notifier) batchController {
	base = base.withDefaults()
	return batchController{
		base:     base,
		batches:  batchRepo,
		audit:    trail,
		notifier: notifier,
		log:      base.Log.With("component", "BatchController"),
	}
}

func (c batchController) recompute(uow *UnitOfWork, batchID uuid.UUID) (domainagg.RecomputeBatchResult, error) {
	out := domainagg.RecomputeBatchResult{BatchID: batchID}
	b, err := c.batches.LockByID(uow.Context, batchID)
	if err != nil {
		return out, err
	}
	if b == nil {
		return out, notFound(uow.Op, "batch")
	}
	counts, err := c.batches.CountAssessments(uow.Context, batchID)
	if err != nil {
		return out, err
	}
	next := batches.NextBatchStatus(b.Status, counts)
	out.Previous = b.Status
	out.Status = next
	out.Counts = counts

	if next == b.Status && counts == b.Counts() {
		return out, nil
	}

	now := c.base.Now()
	updates := map[string]any{
		"status":                  next,
		"total_assessments":       counts.Total,
		"completed_assessments":   counts.Completed,
		"inactivated_assessments": counts.Inactivated,
		"updated_at":              now,
	}
	if next != b.Status {
		switch next {
		case batches.BatchConcluded:
			updates["concluded_at"] = now
			updates["cancelled_at"] = nil
		case batches.BatchCancelled:
			updates["cancelled_at"] = now
			updates["concluded_at"] = nil
		case batches.BatchActive:
			updates["concluded_at"] = nil
			updates["cancelled_at"] = nil
		}
	}
	ok, err := c.base.CASGuard.UpdateByStatus(uow.Context, batches.Batch{}.TableName(), batchID, []string{b.Status.String()}, updates)
	if err != nil {
		return out, err
	}
	if err := RequireCASSuccess(ok, "batch status changed during recompute"); err != nil {
		return out, err
	}
	out.Changed = true

	c.audit.Record(uow, audit.Record{
		Action:       audit.ActionBatchRecomputed,
		ResourceType: audit.ResourceBatch,
		ResourceID:   batchID,
		Before:       map[string]any{"status": b.Status, "counts": b.Counts()},
		After:        map[string]any{"status": next, "counts": counts},
	})

	if next == batches.BatchConcluded && b.Status != batches.BatchConcluded {
		notifyAfterCommit(uow, c.notifier, c.log, domainagg.EventBatchConcluded, map[string]any{
			"batch_id": batchID.String(),
			"code":     b.Code,
			"total":    counts.Total,
		})
	}
	return out, nil
}

type BatchLifecycleAggregateDeps struct {
	Base BaseDeps

	Batches     repos.BatchRepo
	Assessments repos.AssessmentRepo
	Employees   repos.EmployeeRepo

	Audit      *AuditTrail
	Authorizer domainagg.Authorizer
	Notifier   domainagg.Notifier

	EmergencyReasonMinLength int
}

type batchLifecycleAggregate struct {
	deps BatchLifecycleAggregateDeps
	ctrl batchController
}

func NewBatchLifecycleAggregate(deps BatchLifecycleAggregateDeps) domainagg.BatchLifecycleAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.EmergencyReasonMinLength <= 0 {
		deps.EmergencyReasonMinLength = DefaultEmergencyReasonMinLength
	}
	return &batchLifecycleAggregate{
		deps: deps,
		ctrl: newBatchController(deps.Base, deps.Batches, deps.Audit, deps.Notifier),
	}
}

func (a *batchLifecycleAggregate) Contract() domainagg.Contract {
	return domainagg.BatchLifecycleAggregateContract
}

func (a *batchLifecycleAggregate) configured(op string) error {
	if a.deps.Batches == nil || a.deps.Assessments == nil || a.deps.Employees == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "batch lifecycle repos not configured", nil)
	}
	return nil
}

func (a *batchLifecycleAggregate) CreateBatch(ctx context.Context, in domainagg.CreateBatchInput) (domainagg.CreateBatchResult, error) {
	const op = "Batches.Lifecycle.CreateBatch"
	var out domainagg.CreateBatchResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	code := strings.TrimSpace(in.Code)
	title := strings.TrimSpace(in.Title)
	if code == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing batch code", nil)
	}
	if title == "" {
		title = code
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleAdmin, audit.RoleClinicManager, audit.RoleEntityManager) {
			return unauthorized(op, "role cannot create batches")
		}
		row, err := batches.NewBatch(in.Owner, code, title, uow.Actor.ID)
		if err != nil {
			return err
		}
		if !authorized(a.deps.Authorizer, uow.Actor, in.Owner) {
			return unauthorized(op, "actor is not authorized for batch owner")
		}
		now := a.deps.Base.Now()
		row.CreatedAt = now
		row.UpdatedAt = now
		if err := a.deps.Batches.Create(uow.Context, row); err != nil {
			if IsUniqueViolation(err) {
				return domainagg.NewError(domainagg.CodeConflict, op, fmt.Sprintf("batch code %q already exists", code), err)
			}
			return err
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionBatchCreated,
			ResourceType: audit.ResourceBatch,
			ResourceID:   row.ID,
			After:        row,
		})
		out.Batch = *row
		return nil
	})
	return out, err
}

func (a *batchLifecycleAggregate) ReleaseAssessment(ctx context.Context, in domainagg.ReleaseAssessmentInput) (domainagg.ReleaseAssessmentResult, error) {
	const op = "Batches.Lifecycle.ReleaseAssessment"
	var out domainagg.ReleaseAssessmentResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.BatchID == uuid.Nil || in.EmployeeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing batch_id or employee_id", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		b, err := a.deps.Batches.LockByID(uow.Context, in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound(op, "batch")
		}
		owner, err := b.Owner()
		if err != nil {
			return err
		}
		if !uow.Actor.HasRole(audit.RoleAdmin, audit.RoleClinicManager, audit.RoleEntityManager) ||
			!authorized(a.deps.Authorizer, uow.Actor, owner) {
			return unauthorized(op, "actor is not authorized for batch owner")
		}
		if b.Status.PastConcluded() {
			return invalidTransition(op, fmt.Sprintf("batch is %s; no new assessments can be released", b.Status))
		}

		emp, err := a.deps.Employees.GetByID(uow.Context, in.EmployeeID)
		if err != nil {
			return err
		}
		if emp == nil {
			return notFound(op, "employee")
		}
		if !employeeBelongsTo(*emp, owner) {
			return domainagg.NewError(domainagg.CodeValidation, op, "employee is outside the batch owner", nil)
		}
		existing, err := a.deps.Assessments.GetByBatchAndEmployee(uow.Context, b.ID, emp.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainagg.NewError(domainagg.CodeConflict, op, "assessment already released for employee", nil)
		}

		now := a.deps.Base.Now()
		row := &batches.Assessment{
			ID:         uuid.New(),
			BatchID:    b.ID,
			EmployeeID: emp.ID,
			Status:     batches.AssessmentStarted,
			StartedAt:  now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := a.deps.Assessments.Create(uow.Context, row); err != nil {
			return err
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionAssessmentReleased,
			ResourceType: audit.ResourceAssessment,
			ResourceID:   row.ID,
			After:        row,
			Metadata:     map[string]any{"batch_id": b.ID.String(), "employee_id": emp.ID.String()},
		})

		rec, err := a.ctrl.recompute(uow, b.ID)
		if err != nil {
			return err
		}
		out.Assessment = *row
		out.Batch = rec
		return nil
	})
	return out, err
}

func (a *batchLifecycleAggregate) RecomputeBatchStatus(ctx context.Context, in domainagg.RecomputeBatchInput) (domainagg.RecomputeBatchResult, error) {
	const op = "Batches.Lifecycle.RecomputeBatchStatus"
	var out domainagg.RecomputeBatchResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.BatchID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing batch_id", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		b, err := a.deps.Batches.GetByID(uow.Context, in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound(op, "batch")
		}
		owner, err := b.Owner()
		if err != nil {
			return err
		}
		if !authorized(a.deps.Authorizer, uow.Actor, owner) {
			return unauthorized(op, "actor is not authorized for batch owner")
		}
		out, err = a.ctrl.recompute(uow, b.ID)
		return err
	})
	return out, err
}

func (a *batchLifecycleAggregate) SetEmergencyOverride(ctx context.Context, in domainagg.EmergencyOverrideInput) (domainagg.EmergencyOverrideResult, error) {
	const op = "Batches.Lifecycle.SetEmergencyOverride"
	var out domainagg.EmergencyOverrideResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	reason := strings.TrimSpace(in.Reason)
	if in.BatchID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing batch_id", nil)
	}
	if utf8.RuneCountInString(reason) < a.deps.EmergencyReasonMinLength {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("emergency justification must be at least %d characters", a.deps.EmergencyReasonMinLength), nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleEmitter, audit.RoleAdmin) {
			return unauthorized(op, "only emitters and admins may set the emergency override")
		}
		b, err := a.deps.Batches.LockByID(uow.Context, in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound(op, "batch")
		}
		if b.EmergencyOverride {
			return invalidTransition(op, "emergency override already set for batch")
		}

		// Bring the derived status up to date before checking it. A failed
		// recompute only discards its own writes.
		if err := uow.Savepoint(func(inner *UnitOfWork) error {
			_, err := a.ctrl.recompute(inner, b.ID)
			return err
		}); err != nil {
			a.ctrl.log.Warn("speculative recompute rolled back", "op", op, "batch_id", b.ID.String(), "error", err)
		}
		b, err = a.deps.Batches.LockByID(uow.Context, in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound(op, "batch")
		}
		if b.Status != batches.BatchConcluded {
			return invalidTransition(op, fmt.Sprintf("emergency override requires a concluded batch, got %s", b.Status))
		}

		now := a.deps.Base.Now()
		actorID := uow.Actor.ID
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(uow.Context, batches.Batch{}.TableName(), b.ID,
			[]string{batches.BatchConcluded.String()},
			map[string]any{
				"emergency_override":    true,
				"emergency_reason":      reason,
				"emergency_override_at": now,
				"emergency_override_by": actorID,
				"updated_at":            now,
			})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "batch changed while setting emergency override"); err != nil {
			return err
		}

		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionEmergencyOverride,
			ResourceType: audit.ResourceBatch,
			ResourceID:   b.ID,
			Before:       map[string]any{"emergency_override": false},
			After:        map[string]any{"emergency_override": true, "emergency_reason": reason},
			Metadata:     map[string]any{"status": b.Status.String()},
		})
		out = domainagg.EmergencyOverrideResult{BatchID: b.ID, Status: b.Status, SetAt: now}
		return nil
	})
	return out, err
}

func employeeBelongsTo(e batches.Employee, owner batches.Owner) bool {
	switch owner.Kind {
	case batches.OwnerClinic:
		return e.CompanyID != nil && *e.CompanyID == owner.CompanyID
	case batches.OwnerEntity:
		return e.EntityID != nil && *e.EntityID == owner.EntityID
	}
	return false
}
