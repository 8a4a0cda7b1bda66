package aggregates

import (
	"context"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

func authorized(az domainagg.Authorizer, actor audit.ActorContext, owner batches.Owner) bool {
	if az == nil {
		return false
	}
	return az.Authorize(actor, owner)
}

// notifyAfterCommit queues a fire-and-forget notification. Delivery errors
// are logged and dropped.
func notifyAfterCommit(uow *UnitOfWork, n domainagg.Notifier, log *logger.Logger, event domainagg.NotificationEvent, payload map[string]any) {
	if n == nil {
		return
	}
	op := uow.Op
	uow.AfterCommit(func(ctx context.Context) {
		if err := n.Notify(ctx, event, payload); err != nil {
			log.Warn("notification failed", "op", op, "event", string(event), "error", err)
		}
	})
}
