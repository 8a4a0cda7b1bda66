package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

var AssessmentAggregateContract = Contract{
	Name:             "Batches.AssessmentAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	AuditActions:     []audit.Action{audit.ActionAssessmentTransition, audit.ActionResponsesRecorded, audit.ActionSnapshotSynced},
	Notes:            "Owns assessment transitions; terminal transitions sync the employee snapshot and recompute the batch in the same transaction.",
}

// AssessmentAggregate owns the assessment state machine.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeUnauthorized, CodeInvalidTransition, CodeRetryable, CodeInternal.
type AssessmentAggregate interface {
	Aggregate

	TransitionAssessment(ctx context.Context, in TransitionAssessmentInput) (TransitionAssessmentResult, error)

	// RecordResponses upserts answers and auto-completes once the tier questionnaire is full.
	RecordResponses(ctx context.Context, in RecordResponsesInput) (RecordResponsesResult, error)

	// SyncEmployeeSnapshot re-applies the recency rule for one terminal assessment.
	SyncEmployeeSnapshot(ctx context.Context, in SyncSnapshotInput) (SyncSnapshotResult, error)
}

type TransitionAssessmentInput struct {
	Actor        audit.ActorContext
	AssessmentID uuid.UUID
	To           batches.AssessmentStatus
	// Reason is mandatory for inactivation.
	Reason string
	At     time.Time
}

type TransitionAssessmentResult struct {
	Assessment      batches.Assessment
	SnapshotUpdated bool
	Batch           RecomputeBatchResult
}

type ResponseInput struct {
	Group int    `json:"group"`
	Item  string `json:"item"`
	Value int    `json:"value"`
}

type RecordResponsesInput struct {
	Actor        audit.ActorContext
	AssessmentID uuid.UUID
	Responses    []ResponseInput
}

type RecordResponsesResult struct {
	Assessment    batches.Assessment
	Answered      int
	Expected      int
	AutoCompleted bool
	Transition    *TransitionAssessmentResult
}

type SyncSnapshotInput struct {
	Actor        audit.ActorContext
	AssessmentID uuid.UUID
}

type SyncSnapshotResult struct {
	EmployeeID uuid.UUID
	Updated    bool
	Snapshot   batches.Snapshot
}
