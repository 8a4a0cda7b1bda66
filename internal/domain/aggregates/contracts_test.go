package aggregates

import (
	"testing"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
)

func TestContractsOwnTheirTransactions(t *testing.T) {
	for _, c := range Contracts() {
		if !c.RequiresAggregateOwnedTx() {
			t.Fatalf("%s: want aggregate owned tx", c.Name)
		}
		if c.ReadPolicy != ReadPolicyInvariantScoped {
			t.Fatalf("%s: read policy want=%s got=%s", c.Name, ReadPolicyInvariantScoped, c.ReadPolicy)
		}
	}
}

func TestEveryAuditActionHasOneOwner(t *testing.T) {
	for _, action := range audit.Actions() {
		owners := 0
		for _, c := range Contracts() {
			if c.Audits(action) {
				owners++
			}
		}
		if owners != 1 {
			t.Fatalf("%s: owners want=1 got=%d", action, owners)
		}
	}
}
