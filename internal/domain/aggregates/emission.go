package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

var EmissionAggregateContract = Contract{
	Name:             "Batches.EmissionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	AuditActions:     []audit.Action{audit.ActionEmissionRequested, audit.ActionEmissionRejected, audit.ActionBatchSent},
	Notes:            "Sole writer that creates reports and moves batches past concluded; exclusivity comes from the emission_requests unique key.",
}

// EmissionAggregate is the emission request coordinator.
//
// Write method failures return *aggregates.Error with codes:
// CodeNotFound, CodeUnauthorized, CodeInvalidTransition, CodeAlreadyRequested, CodeAlreadyIssued,
// CodeImmutableViolation, CodeRetryable, CodeInternal.
type EmissionAggregate interface {
	Aggregate

	// RequestEmission creates the batch report exactly once across concurrent callers.
	RequestEmission(ctx context.Context, in RequestEmissionInput) (RequestEmissionResult, error)

	// MarkBatchSent closes the emission path once the report is finalized and stored.
	MarkBatchSent(ctx context.Context, in MarkBatchSentInput) (MarkBatchSentResult, error)
}

type RequestEmissionInput struct {
	Actor   audit.ActorContext
	BatchID uuid.UUID
}

type RequestEmissionResult struct {
	Batch     batches.Batch
	Report    batches.Report
	Emergency bool
}

type MarkBatchSentInput struct {
	Actor   audit.ActorContext
	BatchID uuid.UUID
}

type MarkBatchSentResult struct {
	BatchID uuid.UUID
	SentAt  time.Time
}
