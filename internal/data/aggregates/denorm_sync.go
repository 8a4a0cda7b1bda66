package aggregates

import (
	"github.com/yungbote/batchflow-backend/internal/data/repos"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// snapshotSync maintains the employee "latest assessment" columns. It only
// reads and writes the columns listed by batches.SnapshotColumns.
type snapshotSync struct {
	employees repos.EmployeeRepo
	audit     *AuditTrail
}

// apply re-runs the recency rule for a terminal assessment. It is a no-op
// when the snapshot already points at an equal or newer assessment.
func (s snapshotSync) apply(uow *UnitOfWork, a batches.Assessment) (bool, batches.Snapshot, error) {
	cand, ok := batches.SnapshotFromAssessment(a)
	if !ok {
		return false, batches.Snapshot{}, invalidTransition(uow.Op, "assessment has no terminal timestamp")
	}
	emp, err := s.employees.LockByID(uow.Context, a.EmployeeID)
	if err != nil {
		return false, batches.Snapshot{}, err
	}
	if emp == nil {
		return false, batches.Snapshot{}, notFound(uow.Op, "employee")
	}
	current := emp.Snapshot()
	if !batches.ShouldAdvanceSnapshot(current, cand) {
		return false, current, nil
	}
	if err := s.employees.UpdateSnapshot(uow.Context, emp.ID, cand); err != nil {
		return false, current, err
	}
	id, at := cand.AssessmentID, cand.At
	next := batches.Snapshot{AssessmentID: &id, Status: cand.Status, ConcludedAt: &at}

	s.audit.Record(uow, audit.Record{
		Action:       audit.ActionSnapshotSynced,
		ResourceType: audit.ResourceEmployee,
		ResourceID:   emp.ID,
		Before:       current,
		After:        next,
	})
	return true, next, nil
}
