package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	repotest "github.com/yungbote/batchflow-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

func TestExecuteUnitRequiresActor(t *testing.T) {
	called := false
	err := executeUnit(context.Background(), BaseDeps{Runner: spyTxRunner{}}, "uow.test.actor", audit.ActorContext{}, func(*UnitOfWork) error {
		called = true
		return nil
	})
	if !domainagg.IsCode(err, domainagg.CodeUnauthorized) {
		t.Fatalf("missing actor: want unauthorized got=%q (%v)", domainagg.CodeOf(err), err)
	}
	if called {
		t.Fatalf("unit of work ran without an actor")
	}
}

func TestExecuteUnitEffectsRunOnlyAfterCommit(t *testing.T) {
	actor := audit.SystemActor(uuid.New())
	var ran []string

	err := executeUnit(context.Background(), BaseDeps{Runner: spyTxRunner{}}, "uow.test.fail", actor, func(uow *UnitOfWork) error {
		uow.AfterCommit(func(context.Context) { ran = append(ran, "failed") })
		return ConflictError("stale")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(ran) != 0 {
		t.Fatalf("effects after rollback: %v", ran)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = executeUnit(ctx, BaseDeps{Runner: spyTxRunner{}}, "uow.test.ok", actor, func(uow *UnitOfWork) error {
		uow.AfterCommit(func(c context.Context) {
			if c.Err() != nil {
				ran = append(ran, "canceled")
				return
			}
			ran = append(ran, "ok")
		})
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("executeUnit: %v", err)
	}
	if len(ran) != 1 || ran[0] != "ok" {
		t.Fatalf("effects: want=[ok] got=%v", ran)
	}
}

func TestSavepointRollbackKeepsOuterActor(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	hooks := &spyHooks{}
	trail := NewAuditTrail(set.Audit, log, hooks)
	deps := BaseDeps{DB: db, Log: log, Hooks: hooks}

	outer := audit.ActorContext{ID: uuid.New(), Role: audit.RoleEmitter, Meta: audit.RequestMeta{ClientIP: "10.1.2.3"}}
	resource := uuid.New()
	var ran []string

	err := executeUnit(context.Background(), deps, "uow.test.savepoint", outer, func(uow *UnitOfWork) error {
		spErr := uow.Savepoint(func(inner *UnitOfWork) error {
			inner.Actor = audit.SystemActor(uuid.New())
			trail.Record(inner, audit.Record{
				Action:       audit.ActionBatchRecomputed,
				ResourceType: audit.ResourceBatch,
				ResourceID:   resource,
			})
			inner.AfterCommit(func(context.Context) { ran = append(ran, "inner") })
			return errors.New("speculative step failed")
		})
		if spErr == nil {
			t.Errorf("savepoint: want error")
		}
		if uow.Actor.ID != outer.ID {
			t.Errorf("outer actor changed: want=%s got=%s", outer.ID, uow.Actor.ID)
		}
		trail.Record(uow, audit.Record{
			Action:       audit.ActionEmergencyOverride,
			ResourceType: audit.ResourceBatch,
			ResourceID:   resource,
		})
		uow.AfterCommit(func(context.Context) { ran = append(ran, "outer") })
		return nil
	})
	if err != nil {
		t.Fatalf("executeUnit: %v", err)
	}

	entries, err := set.Audit.ListByResource(dbctx.Context{Ctx: context.Background()}, audit.ResourceBatch, resource, 0)
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries: want=1 got=%d", len(entries))
	}
	e := entries[0]
	if e.Action != audit.ActionEmergencyOverride || e.ActorID != outer.ID || e.ActorRole != audit.RoleEmitter {
		t.Fatalf("surviving entry: got action=%s actor=%s role=%s", e.Action, e.ActorID, e.ActorRole)
	}
	if e.ClientIP != "10.1.2.3" {
		t.Fatalf("request meta: want client ip 10.1.2.3 got=%q", e.ClientIP)
	}
	if len(ran) != 1 || ran[0] != "outer" {
		t.Fatalf("effects: want=[outer] got=%v", ran)
	}
	if len(hooks.AuditFailures) != 0 {
		t.Fatalf("audit failures: %v", hooks.AuditFailures)
	}
}

type failingEntries struct {
	repos.AuditEntryRepo
}

func (failingEntries) Create(dbctx.Context, *audit.Entry) error {
	return errors.New("audit table unavailable")
}

func TestAuditFailureDoesNotAbortUnit(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	hooks := &spyHooks{}
	trail := NewAuditTrail(failingEntries{set.Audit}, log, hooks)
	deps := BaseDeps{DB: db, Log: log, Hooks: hooks}

	owner, err := batches.NewEntityOwner(uuid.New())
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	actor := audit.ActorContext{ID: uuid.New(), Role: audit.RoleAdmin}
	row, err := batches.NewBatch(owner, "AUD-"+uuid.NewString(), "audit outage", actor.ID)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	err = executeUnit(context.Background(), deps, "uow.test.audit_failure", actor, func(uow *UnitOfWork) error {
		if err := set.Batches.Create(uow.Context, row); err != nil {
			return err
		}
		trail.Record(uow, audit.Record{Action: audit.ActionBatchCreated, ResourceType: audit.ResourceBatch, ResourceID: row.ID})
		return nil
	})
	if err != nil {
		t.Fatalf("executeUnit: %v", err)
	}
	got, err := set.Batches.GetByID(dbctx.Context{Ctx: context.Background()}, row.ID)
	if err != nil || got == nil {
		t.Fatalf("batch not committed: %v", err)
	}
	if len(hooks.AuditFailures) != 1 || hooks.AuditFailures[0] != string(audit.ActionBatchCreated) {
		t.Fatalf("audit failures: want=[%s] got=%v", audit.ActionBatchCreated, hooks.AuditFailures)
	}
}

func TestSavepointWithoutTxRunsInline(t *testing.T) {
	uow := &UnitOfWork{Context: dbctx.Context{Ctx: context.Background()}, Actor: audit.SystemActor(uuid.New())}
	var ran bool
	if err := uow.Savepoint(func(inner *UnitOfWork) error {
		inner.AfterCommit(func(context.Context) { ran = true })
		return nil
	}); err != nil {
		t.Fatalf("Savepoint: %v", err)
	}
	if uow.effects == nil || len(uow.effects.fns) != 1 {
		t.Fatalf("child effects not merged")
	}
	uow.effects.fns[0](context.Background())
	if !ran {
		t.Fatalf("merged effect did not run")
	}
}
