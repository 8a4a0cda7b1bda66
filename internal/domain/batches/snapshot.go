package batches

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the denormalized "latest assessment" view kept on Employee.
type Snapshot struct {
	AssessmentID *uuid.UUID
	Status       AssessmentStatus
	ConcludedAt  *time.Time
}

func (s Snapshot) Empty() bool {
	return s.AssessmentID == nil || *s.AssessmentID == uuid.Nil || s.ConcludedAt == nil
}

// SnapshotCandidate is an assessment that just completed or was inactivated.
type SnapshotCandidate struct {
	AssessmentID uuid.UUID
	Status       AssessmentStatus
	At           time.Time
}

// SnapshotFromAssessment builds a candidate; ok is false unless the
// assessment is terminal with its terminal timestamp set.
func SnapshotFromAssessment(a Assessment) (SnapshotCandidate, bool) {
	var at *time.Time
	switch a.Status {
	case AssessmentCompleted:
		at = a.CompletedAt
	case AssessmentInactivated:
		at = a.InactivatedAt
	}
	if at == nil {
		return SnapshotCandidate{}, false
	}
	return SnapshotCandidate{AssessmentID: a.ID, Status: a.Status, At: at.UTC()}, true
}

// ShouldAdvanceSnapshot is the recency rule: newer timestamp wins, equal
// timestamps fall back to the byte-wise larger id. Re-applying the current
// snapshot's own assessment is a no-op.
func ShouldAdvanceSnapshot(current Snapshot, in SnapshotCandidate) bool {
	if current.Empty() {
		return true
	}
	if *current.AssessmentID == in.AssessmentID {
		return false
	}
	cur := current.ConcludedAt.UTC()
	switch {
	case in.At.After(cur):
		return true
	case in.At.Before(cur):
		return false
	default:
		return bytes.Compare(in.AssessmentID[:], current.AssessmentID[:]) > 0
	}
}
