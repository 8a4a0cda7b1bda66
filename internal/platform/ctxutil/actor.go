package ctxutil

import (
	"context"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
)

type actorKey struct{}
type requestMetaKey struct{}

// WithActor stores the authenticated actor for handlers. Aggregates never read
// it from the context; handlers pass it explicitly.
func WithActor(ctx context.Context, actor audit.ActorContext) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActor(ctx context.Context) (audit.ActorContext, bool) {
	actor, ok := ctx.Value(actorKey{}).(audit.ActorContext)
	if !ok || actor.Validate() != nil {
		return audit.ActorContext{}, false
	}
	return actor, true
}

func WithRequestMeta(ctx context.Context, meta audit.RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func GetRequestMeta(ctx context.Context) audit.RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(audit.RequestMeta)
	return meta
}
