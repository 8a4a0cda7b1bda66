package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/batchflow-backend/internal/data/aggregates"

// BaseDeps is shared by every aggregate. Only DB is required; Now defaults
// to UTC wall time and is what all lifecycle timestamps are taken from.
type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Now      func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// executeUnit runs fn as one unit of work attributed to actor. The actor is
// validated inside the transaction, errors leave mapped to aggregate codes,
// and effects registered with AfterCommit run only after a commit.
func executeUnit(ctx context.Context, deps BaseDeps, op string, actor audit.ActorContext, fn func(uow *UnitOfWork) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("actor.id", actor.ID.String()),
	)

	var effects *effectList
	err := MapError(op, deps.Runner.InTx(ctx, func(dbc dbctx.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		effects = &effectList{}
		return fn(&UnitOfWork{Context: dbc, Actor: actor, Op: op, effects: effects})
	}))

	outcome := outcomeOf(err)
	if err != nil {
		code := domainagg.CodeOf(err)
		if lostRace(code) {
			deps.Hooks.IncConflict(op, code)
		}
		if code.Retryable() {
			deps.Hooks.IncRetry(op)
		}
		span.SetStatus(codes.Error, outcome)
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("aggregate.outcome", outcome))
	deps.Hooks.ObserveOperation(op, outcome, time.Since(start))
	if err != nil {
		return err
	}

	if effects != nil {
		after := context.WithoutCancel(ctx)
		for _, fx := range effects.fns {
			fx(after)
		}
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeOf(MapError("aggregate.outcome", err))
	}
	if code == "" {
		return "failure"
	}
	return string(code)
}
