package aggregates

import (
	"context"
	"time"

	"github.com/yungbote/batchflow-backend/internal/data/repos"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// AuditTrail journals mutations with the unit of work's actor. A failed
// audit write is logged and counted but never fails the caller.
type AuditTrail struct {
	entries repos.AuditEntryRepo
	log     *logger.Logger
	hooks   Hooks
	now     func() time.Time
}

func NewAuditTrail(entries repos.AuditEntryRepo, baseLog *logger.Logger, hooks Hooks) *AuditTrail {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &AuditTrail{
		entries: entries,
		log:     baseLog.With("component", "AuditTrail"),
		hooks:   hooks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record writes one entry inside its own savepoint so a failed insert leaves
// the enclosing transaction intact.
func (a *AuditTrail) Record(uow *UnitOfWork, rec audit.Record) {
	if a == nil || a.entries == nil || uow == nil {
		return
	}
	entry, err := audit.NewEntry(uow.Actor, rec, a.now())
	if err == nil {
		err = uow.Savepoint(func(inner *UnitOfWork) error {
			return a.entries.Create(inner.Context, &entry)
		})
	}
	if err != nil {
		a.fail(uow.Op, rec, err)
	}
}

// RecordDetached writes one entry in a fresh transaction. It is used for
// rejected operations whose own transaction has already rolled back.
func (a *AuditTrail) RecordDetached(ctx context.Context, runner TxRunner, actor audit.ActorContext, op string, rec audit.Record) {
	if a == nil || a.entries == nil || runner == nil {
		return
	}
	entry, err := audit.NewEntry(actor, rec, a.now())
	if err == nil {
		err = runner.InTx(context.WithoutCancel(ctx), func(dbc dbctx.Context) error {
			return a.entries.Create(dbc, &entry)
		})
	}
	if err != nil {
		a.fail(op, rec, err)
	}
}

func (a *AuditTrail) fail(op string, rec audit.Record, err error) {
	a.hooks.IncAuditFailure(string(rec.Action))
	a.log.Error("audit write failed",
		"op", op,
		"action", string(rec.Action),
		"resource_type", rec.ResourceType,
		"resource_id", rec.ResourceID.String(),
		"error", err,
	)
}
