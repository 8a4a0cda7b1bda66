package aggregates

import "github.com/yungbote/batchflow-backend/internal/domain/audit"

// WriteTxOwnership says who opens the transaction around a write.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate: write methods open and finish their own unit of work.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy says which reads an aggregate may perform.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only rows needed to decide an invariant, read under lock.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
)

// Contract describes what an aggregate owns. AuditActions lists the audit
// actions its operations introduce.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	AuditActions     []audit.Action
	Notes            string
}

// Aggregate is implemented by every write-side aggregate.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Audits reports whether action belongs to this aggregate.
func (c Contract) Audits(action audit.Action) bool {
	for _, a := range c.AuditActions {
		if a == action {
			return true
		}
	}
	return false
}

// Contracts lists the contracts of all aggregates in this package.
func Contracts() []Contract {
	return []Contract{
		BatchLifecycleAggregateContract,
		AssessmentAggregateContract,
		EmissionAggregateContract,
		ReportAggregateContract,
	}
}
