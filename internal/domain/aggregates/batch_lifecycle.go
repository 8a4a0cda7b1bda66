package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

var BatchLifecycleAggregateContract = Contract{
	Name:             "Batches.BatchLifecycleAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	AuditActions:     []audit.Action{audit.ActionBatchCreated, audit.ActionAssessmentReleased, audit.ActionBatchRecomputed, audit.ActionEmergencyOverride},
	Notes:            "Owns batch creation, assessment release, derived status recomputation and the emergency override flag.",
}

// BatchLifecycleAggregate owns the derived part of the batch state machine.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeUnauthorized, CodeInvalidTransition, CodeConflict, CodeRetryable, CodeInternal.
type BatchLifecycleAggregate interface {
	Aggregate

	CreateBatch(ctx context.Context, in CreateBatchInput) (CreateBatchResult, error)

	// ReleaseAssessment opens a started assessment for one employee and recomputes the batch.
	ReleaseAssessment(ctx context.Context, in ReleaseAssessmentInput) (ReleaseAssessmentResult, error)

	// RecomputeBatchStatus applies the completion rule. Re-running it with unchanged inputs is a no-op.
	RecomputeBatchStatus(ctx context.Context, in RecomputeBatchInput) (RecomputeBatchResult, error)

	// SetEmergencyOverride flags a concluded batch for one emergency issuance.
	SetEmergencyOverride(ctx context.Context, in EmergencyOverrideInput) (EmergencyOverrideResult, error)
}

type CreateBatchInput struct {
	Actor audit.ActorContext
	Owner batches.Owner
	Code  string
	Title string
}

type CreateBatchResult struct {
	Batch batches.Batch
}

type ReleaseAssessmentInput struct {
	Actor      audit.ActorContext
	BatchID    uuid.UUID
	EmployeeID uuid.UUID
}

type ReleaseAssessmentResult struct {
	Assessment batches.Assessment
	Batch      RecomputeBatchResult
}

type RecomputeBatchInput struct {
	Actor   audit.ActorContext
	BatchID uuid.UUID
}

type RecomputeBatchResult struct {
	BatchID  uuid.UUID
	Previous batches.BatchStatus
	Status   batches.BatchStatus
	Counts   batches.AssessmentCounts
	// Changed is true only when the stored row was written.
	Changed bool
}

type EmergencyOverrideInput struct {
	Actor   audit.ActorContext
	BatchID uuid.UUID
	Reason  string
}

type EmergencyOverrideResult struct {
	BatchID uuid.UUID
	Status  batches.BatchStatus
	SetAt   time.Time
}
