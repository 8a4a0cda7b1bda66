package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

var ReportAggregateContract = Contract{
	Name:             "Batches.ReportAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	AuditActions:     []audit.Action{audit.ActionReportUpdated, audit.ActionReportHashBackfilled, audit.ActionReportArtifactStored, audit.ActionReportMutationBlocked},
	Notes:            "Every report mutation passes the immutability guard under a row lock.",
}

// ReportAggregate owns report mutations after creation.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeImmutableViolation, CodeRetryable, CodeInternal.
type ReportAggregate interface {
	Aggregate

	UpdateReport(ctx context.Context, in UpdateReportInput) (UpdateReportResult, error)

	// BackfillReportHash writes the content hash of an issued report exactly once.
	BackfillReportHash(ctx context.Context, in BackfillReportHashInput) (UpdateReportResult, error)

	RecordReportArtifact(ctx context.Context, in RecordReportArtifactInput) (RecordReportArtifactResult, error)
}

type UpdateReportInput struct {
	Actor    audit.ActorContext
	ReportID uuid.UUID
	Patch    batches.ReportPatch
}

type UpdateReportResult struct {
	Report batches.Report
}

type BackfillReportHashInput struct {
	Actor       audit.ActorContext
	ReportID    uuid.UUID
	ContentHash string
}

type RecordReportArtifactInput struct {
	Actor       audit.ActorContext
	ReportID    uuid.UUID
	StorageRef  string
	SizeBytes   int64
	ContentType string
}

type RecordReportArtifactResult struct {
	Artifact batches.ReportArtifact
	// Existing is true when an identical artifact was already recorded.
	Existing bool
}
