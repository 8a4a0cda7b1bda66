package batches

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func snapshotOf(id uuid.UUID, at time.Time) Snapshot {
	return Snapshot{AssessmentID: &id, Status: AssessmentCompleted, ConcludedAt: &at}
}

func TestShouldAdvanceSnapshotNeverRegresses(t *testing.T) {
	t1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(-48 * time.Hour)
	a := uuid.New()
	b := uuid.New()

	current := snapshotOf(a, t1)
	if ShouldAdvanceSnapshot(current, SnapshotCandidate{AssessmentID: b, Status: AssessmentCompleted, At: t2}) {
		t.Fatalf("older assessment must not replace a newer snapshot")
	}
	if !ShouldAdvanceSnapshot(snapshotOf(b, t2), SnapshotCandidate{AssessmentID: a, Status: AssessmentCompleted, At: t1}) {
		t.Fatalf("newer assessment must replace an older snapshot")
	}
}

func TestShouldAdvanceSnapshotEmpty(t *testing.T) {
	if !ShouldAdvanceSnapshot(Snapshot{}, SnapshotCandidate{AssessmentID: uuid.New(), At: time.Now()}) {
		t.Fatalf("empty snapshot must accept any candidate")
	}
}

func TestShouldAdvanceSnapshotTieBreakIsDeterministic(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	low := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	high := uuid.MustParse("ffffffff-0000-4000-8000-000000000001")

	if !ShouldAdvanceSnapshot(snapshotOf(low, at), SnapshotCandidate{AssessmentID: high, At: at}) {
		t.Fatalf("higher id must win a timestamp tie")
	}
	if ShouldAdvanceSnapshot(snapshotOf(high, at), SnapshotCandidate{AssessmentID: low, At: at}) {
		t.Fatalf("lower id must lose a timestamp tie")
	}
	if ShouldAdvanceSnapshot(snapshotOf(high, at), SnapshotCandidate{AssessmentID: high, At: at}) {
		t.Fatalf("re-applying the same assessment must be a no-op")
	}
}

func TestSnapshotFromAssessment(t *testing.T) {
	done := time.Now().UTC()
	a := Assessment{ID: uuid.New(), Status: AssessmentInactivated, InactivatedAt: &done}
	c, ok := SnapshotFromAssessment(a)
	if !ok || !c.At.Equal(done) || c.Status != AssessmentInactivated {
		t.Fatalf("inactivated candidate: ok=%v got=%+v", ok, c)
	}
	if _, ok := SnapshotFromAssessment(Assessment{ID: uuid.New(), Status: AssessmentInProgress}); ok {
		t.Fatalf("non-terminal assessment must not produce a candidate")
	}
}
