package aggregates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

type EmissionAggregateDeps struct {
	Base BaseDeps

	Batches          repos.BatchRepo
	Reports          repos.ReportRepo
	EmissionRequests repos.EmissionRequestRepo
	ReportArtifacts  repos.ReportArtifactRepo

	Audit      *AuditTrail
	Authorizer domainagg.Authorizer
	Notifier   domainagg.Notifier
	Queue      domainagg.RenderQueue
}

type emissionAggregate struct {
	deps EmissionAggregateDeps
}

func NewEmissionAggregate(deps EmissionAggregateDeps) domainagg.EmissionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &emissionAggregate{deps: deps}
}

func (a *emissionAggregate) Contract() domainagg.Contract {
	return domainagg.EmissionAggregateContract
}

func (a *emissionAggregate) configured(op string) error {
	if a.deps.Batches == nil || a.deps.Reports == nil || a.deps.EmissionRequests == nil || a.deps.ReportArtifacts == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "emission repos not configured", nil)
	}
	return nil
}

// RequestEmission checks, in order: the batch exists, the actor may act for
// its owner, the status allows emission, no report exists, and no other
// request holds the batch mutex. The mutex is the emission_requests primary
// key; under concurrency every loser fails on that insert and gets
// AlreadyRequested, or observes the winner's committed state and gets
// AlreadyIssued.
func (a *emissionAggregate) RequestEmission(ctx context.Context, in domainagg.RequestEmissionInput) (domainagg.RequestEmissionResult, error) {
	const op = "Batches.Emission.RequestEmission"
	var out domainagg.RequestEmissionResult
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
		emergencyActor := b.EmergencyOverride && uow.Actor.HasRole(audit.RoleEmitter, audit.RoleAdmin)
		if !emergencyActor && !authorized(a.deps.Authorizer, uow.Actor, owner) {
			return unauthorized(op, "actor is not authorized for batch owner")
		}

		switch {
		case b.Status == batches.BatchReportRequested:
			return domainagg.NewError(domainagg.CodeAlreadyRequested, op, "emission already requested", nil)
		case b.Status == batches.BatchIssued, b.Status == batches.BatchSent:
			return domainagg.NewError(domainagg.CodeAlreadyIssued, op, "report already issued", nil)
		case b.Status == batches.BatchConcluded:
		case b.Status == batches.BatchActive && b.EmergencyOverride:
		default:
			return invalidTransition(op, fmt.Sprintf("batch is %s; emission requires a concluded batch", b.Status))
		}

		existing, err := a.deps.Reports.GetByBatchID(uow.Context, b.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainagg.NewError(domainagg.CodeAlreadyIssued, op, "report already exists for batch", nil)
		}

		now := a.deps.Base.Now()
		if err := a.deps.EmissionRequests.Insert(uow.Context, &batches.EmissionRequest{
			BatchID:       b.ID,
			RequestedBy:   uow.Actor.ID,
			RequestedRole: string(uow.Actor.Role),
			Emergency:     b.EmergencyOverride,
			CreatedAt:     now,
		}); err != nil {
			if IsUniqueViolation(err) {
				return domainagg.NewError(domainagg.CodeAlreadyRequested, op, "emission already requested", err)
			}
			return err
		}

		if err := a.advance(uow, b.ID, b.Status, batches.BatchReportRequested, map[string]any{
			"emission_requested_at": now,
		}); err != nil {
			return err
		}
		if err := a.advance(uow, b.ID, batches.BatchReportRequested, batches.BatchIssued, map[string]any{
			"issued_at": now,
		}); err != nil {
			return err
		}

		issuedAt := now
		report := &batches.Report{
			ID:          uuid.New(),
			BatchID:     b.ID,
			Status:      batches.ReportIssued,
			IssuedAt:    &issuedAt,
			EmitterID:   uow.Actor.ID,
			EmitterRole: string(uow.Actor.Role),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := batches.CheckReportCreate(*report); err != nil {
			return err
		}
		if err := a.deps.Reports.Create(uow.Context, report); err != nil {
			if IsUniqueViolation(err) {
				return domainagg.NewError(domainagg.CodeAlreadyIssued, op, "report already exists for batch", err)
			}
			return err
		}

		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionEmissionRequested,
			ResourceType: audit.ResourceBatch,
			ResourceID:   b.ID,
			Before:       map[string]any{"status": b.Status},
			After:        map[string]any{"status": batches.BatchIssued, "report_id": report.ID.String()},
			Metadata:     map[string]any{"emergency": b.EmergencyOverride},
		})

		job := domainagg.RenderJob{ReportID: report.ID, BatchID: b.ID}
		if a.deps.Queue != nil {
			log := a.deps.Base.Log
			uow.AfterCommit(func(ctx context.Context) {
				if err := a.deps.Queue.Enqueue(ctx, job); err != nil {
					log.Error("render job enqueue failed", "op", op, "report_id", job.ReportID.String(), "error", err)
				}
			})
		}
		notifyAfterCommit(uow, a.deps.Notifier, a.deps.Base.Log, domainagg.EventReportRequested, map[string]any{
			"batch_id":  b.ID.String(),
			"report_id": report.ID.String(),
			"emergency": b.EmergencyOverride,
		})

		b.Status = batches.BatchIssued
		b.EmissionRequestedAt = &issuedAt
		b.IssuedAt = &issuedAt
		b.UpdatedAt = now
		out = domainagg.RequestEmissionResult{Batch: *b, Report: *report, Emergency: b.EmergencyOverride}
		return nil
	})
	if err != nil {
		a.auditRejected(ctx, in, op, err)
	}
	return out, err
}

// advance is the compare-and-set step of the emission path. from is the
// status the row must still hold.
func (a *emissionAggregate) advance(uow *UnitOfWork, batchID uuid.UUID, from, to batches.BatchStatus, extra map[string]any) error {
	if !batches.CanAdvanceEmission(from, to) {
		return invalidTransition(uow.Op, fmt.Sprintf("batch cannot move from %s to %s", from, to))
	}
	updates := map[string]any{"status": to, "updated_at": a.deps.Base.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := a.deps.Base.CASGuard.UpdateByStatus(uow.Context, batches.Batch{}.TableName(), batchID, []string{from.String()}, updates)
	if err != nil {
		return err
	}
	if !ok {
		return invalidTransition(uow.Op, "batch status changed during emission")
	}
	return nil
}

func (a *emissionAggregate) auditRejected(ctx context.Context, in domainagg.RequestEmissionInput, op string, err error) {
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeAlreadyRequested, domainagg.CodeAlreadyIssued, domainagg.CodeInvalidTransition, domainagg.CodeUnauthorized:
	default:
		return
	}
	if in.Actor.Validate() != nil {
		return
	}
	a.deps.Audit.RecordDetached(ctx, a.deps.Base.Runner, in.Actor, op, audit.Record{
		Action:       audit.ActionEmissionRejected,
		ResourceType: audit.ResourceBatch,
		ResourceID:   in.BatchID,
		Metadata:     map[string]any{"code": string(code), "error": err.Error()},
	})
}

func (a *emissionAggregate) MarkBatchSent(ctx context.Context, in domainagg.MarkBatchSentInput) (domainagg.MarkBatchSentResult, error) {
	const op = "Batches.Emission.MarkBatchSent"
	var out domainagg.MarkBatchSentResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.BatchID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing batch_id", nil)
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleSystem, audit.RoleAdmin, audit.RoleEmitter) {
			return unauthorized(op, "role cannot mark batches as sent")
		}
		b, err := a.deps.Batches.LockByID(uow.Context, in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound(op, "batch")
		}
		if b.Status == batches.BatchSent && b.SentAt != nil {
			out = domainagg.MarkBatchSentResult{BatchID: b.ID, SentAt: *b.SentAt}
			return nil
		}
		if b.Status != batches.BatchIssued {
			return invalidTransition(op, fmt.Sprintf("batch is %s; only issued batches can be sent", b.Status))
		}
		report, err := a.deps.Reports.GetByBatchID(uow.Context, b.ID)
		if err != nil {
			return err
		}
		if report == nil {
			return notFound(op, "report")
		}
		if !report.Finalized() {
			return invalidTransition(op, "report content hash has not been backfilled")
		}
		artifact, err := a.deps.ReportArtifacts.GetByReportID(uow.Context, report.ID)
		if err != nil {
			return err
		}
		if artifact == nil {
			return invalidTransition(op, "report has not been stored")
		}

		now := a.deps.Base.Now()
		if err := a.advance(uow, b.ID, batches.BatchIssued, batches.BatchSent, map[string]any{
			"sent_at": now,
		}); err != nil {
			return err
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionBatchSent,
			ResourceType: audit.ResourceBatch,
			ResourceID:   b.ID,
			Before:       map[string]any{"status": b.Status},
			After:        map[string]any{"status": batches.BatchSent},
			Metadata:     map[string]any{"report_id": report.ID.String(), "storage_ref": artifact.StorageRef},
		})
		notifyAfterCommit(uow, a.deps.Notifier, a.deps.Base.Log, domainagg.EventReportSent, map[string]any{
			"batch_id":    b.ID.String(),
			"report_id":   report.ID.String(),
			"storage_ref": artifact.StorageRef,
		})
		out = domainagg.MarkBatchSentResult{BatchID: b.ID, SentAt: now}
		return nil
	})
	return out, err
}
