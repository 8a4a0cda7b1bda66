package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

type ReportAggregateDeps struct {
	Base BaseDeps

	Reports         repos.ReportRepo
	ReportArtifacts repos.ReportArtifactRepo

	Audit *AuditTrail
}

type reportAggregate struct {
	deps ReportAggregateDeps
}

func NewReportAggregate(deps ReportAggregateDeps) domainagg.ReportAggregate {
	deps.Base = deps.Base.withDefaults()
	return &reportAggregate{deps: deps}
}

func (a *reportAggregate) Contract() domainagg.Contract {
	return domainagg.ReportAggregateContract
}

func (a *reportAggregate) configured(op string) error {
	if a.deps.Reports == nil || a.deps.ReportArtifacts == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "report repos not configured", nil)
	}
	return nil
}

func (a *reportAggregate) UpdateReport(ctx context.Context, in domainagg.UpdateReportInput) (domainagg.UpdateReportResult, error) {
	const op = "Batches.Report.UpdateReport"
	return a.mutate(ctx, op, in.Actor, in.ReportID, in.Patch, audit.ActionReportUpdated)
}

func (a *reportAggregate) BackfillReportHash(ctx context.Context, in domainagg.BackfillReportHashInput) (domainagg.UpdateReportResult, error) {
	const op = "Batches.Report.BackfillReportHash"
	hash := batches.NormalizeContentHash(in.ContentHash)
	if !batches.ValidContentHash(hash) {
		return domainagg.UpdateReportResult{}, MapError(op, batches.ErrInvalidContentHash)
	}
	return a.mutate(ctx, op, in.Actor, in.ReportID, batches.ReportPatch{ContentHash: &hash}, audit.ActionReportHashBackfilled)
}

// mutate is the only write path for existing reports. The guard runs against
// the locked row; a rejection is journaled in its own transaction.
func (a *reportAggregate) mutate(ctx context.Context, op string, actor audit.ActorContext, reportID uuid.UUID, patch batches.ReportPatch, action audit.Action) (domainagg.UpdateReportResult, error) {
	var out domainagg.UpdateReportResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if reportID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing report_id", nil)
	}

	var blocked error
	err := executeUnit(ctx, a.deps.Base, op, actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleSystem, audit.RoleAdmin, audit.RoleEmitter) {
			return unauthorized(op, "role cannot modify reports")
		}
		current, err := a.deps.Reports.LockByID(uow.Context, reportID)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound(op, "report")
		}
		if err := batches.CheckReportMutation(*current, patch); err != nil {
			blocked = err
			return err
		}
		if patch.Status != nil && patch.Status.IsZero() {
			return batches.ErrUnsetStatus
		}
		if err := a.deps.Reports.UpdateFields(uow.Context, current.ID, patch.Columns()); err != nil {
			return err
		}
		next, err := a.deps.Reports.GetByID(uow.Context, current.ID)
		if err != nil {
			return err
		}
		if next == nil {
			return notFound(op, "report")
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       action,
			ResourceType: audit.ResourceReport,
			ResourceID:   current.ID,
			Before:       current,
			After:        next,
		})
		out.Report = *next
		return nil
	})
	if err != nil && blocked != nil && isImmutability(blocked) && actor.Validate() == nil {
		a.deps.Audit.RecordDetached(ctx, a.deps.Base.Runner, actor, op, audit.Record{
			Action:       audit.ActionReportMutationBlocked,
			ResourceType: audit.ResourceReport,
			ResourceID:   reportID,
			Metadata:     map[string]any{"reason": blocked.Error(), "fields": patchFields(patch)},
		})
	}
	return out, err
}

func isImmutability(err error) bool {
	return errors.Is(err, batches.ErrReportFinalized) ||
		errors.Is(err, batches.ErrReportCombinedUpdate) ||
		errors.Is(err, batches.ErrReportIssuedFrozen)
}

func patchFields(p batches.ReportPatch) []string {
	cols := p.Columns()
	out := make([]string, 0, len(cols))
	for _, k := range []string{"status", "issued_at", "content_hash", "emitter_id", "emitter_role"} {
		if _, ok := cols[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (a *reportAggregate) RecordReportArtifact(ctx context.Context, in domainagg.RecordReportArtifactInput) (domainagg.RecordReportArtifactResult, error) {
	const op = "Batches.Report.RecordReportArtifact"
	var out domainagg.RecordReportArtifactResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	ref := strings.TrimSpace(in.StorageRef)
	if in.ReportID == uuid.Nil || ref == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing report_id or storage_ref", nil)
	}
	if in.SizeBytes < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "negative artifact size", nil)
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = "application/pdf"
	}

	err := executeUnit(ctx, a.deps.Base, op, in.Actor, func(uow *UnitOfWork) error {
		if !uow.Actor.HasRole(audit.RoleSystem, audit.RoleAdmin, audit.RoleEmitter) {
			return unauthorized(op, "role cannot record report artifacts")
		}
		report, err := a.deps.Reports.LockByID(uow.Context, in.ReportID)
		if err != nil {
			return err
		}
		if report == nil {
			return notFound(op, "report")
		}
		if report.IssuedAt == nil {
			return invalidTransition(op, "report has not been issued")
		}
		existing, err := a.deps.ReportArtifacts.GetByReportID(uow.Context, report.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.StorageRef == ref {
				out = domainagg.RecordReportArtifactResult{Artifact: *existing, Existing: true}
				return nil
			}
			return domainagg.NewError(domainagg.CodeImmutableViolation, op, "report artifact already recorded", nil)
		}
		row := &batches.ReportArtifact{
			ReportID:    report.ID,
			StorageRef:  ref,
			SizeBytes:   in.SizeBytes,
			ContentType: contentType,
			StoredAt:    a.deps.Base.Now(),
		}
		if err := a.deps.ReportArtifacts.Create(uow.Context, row); err != nil {
			return err
		}
		a.deps.Audit.Record(uow, audit.Record{
			Action:       audit.ActionReportArtifactStored,
			ResourceType: audit.ResourceReport,
			ResourceID:   report.ID,
			After:        row,
		})
		out = domainagg.RecordReportArtifactResult{Artifact: *row}
		return nil
	})
	return out, err
}
