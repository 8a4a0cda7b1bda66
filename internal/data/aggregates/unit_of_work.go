package aggregates

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

// UnitOfWork is one transaction plus the actor performing it. The actor is
// copied into every nested step, so nothing an inner step does (or undoes)
// can change who the outer unit of work is attributed to.
type UnitOfWork struct {
	dbctx.Context

	Actor audit.ActorContext
	Op    string

	effects *effectList
}

type effectList struct {
	fns []func(ctx context.Context)
}

// AfterCommit registers fn to run once the outermost transaction committed.
// Effects registered inside a savepoint that is rolled back are dropped.
func (u *UnitOfWork) AfterCommit(fn func(ctx context.Context)) {
	if u == nil || fn == nil {
		return
	}
	if u.effects == nil {
		u.effects = &effectList{}
	}
	u.effects.fns = append(u.effects.fns, fn)
}

// Savepoint runs fn in a nested transaction. On error only fn's writes are
// rolled back and the error is returned; the enclosing unit of work stays
// usable.
func (u *UnitOfWork) Savepoint(fn func(inner *UnitOfWork) error) error {
	if fn == nil {
		return nil
	}
	child := &UnitOfWork{
		Context: u.Context,
		Actor:   u.Actor,
		Op:      u.Op,
		effects: &effectList{},
	}
	var err error
	if u.Tx == nil {
		err = fn(child)
	} else {
		err = u.Tx.Transaction(func(tx *gorm.DB) error {
			child.Context = dbctx.Context{Ctx: u.Ctx, Tx: tx}
			return fn(child)
		})
	}
	if err != nil {
		return err
	}
	if u.effects == nil {
		u.effects = &effectList{}
	}
	u.effects.fns = append(u.effects.fns, child.effects.fns...)
	return nil
}
