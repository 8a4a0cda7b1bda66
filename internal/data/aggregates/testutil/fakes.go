package testutil

import (
	"context"
	"sync"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// FakeNotifier records notifications; Err makes every call fail.
type FakeNotifier struct {
	mu sync.Mutex

	Err    error
	Events []NotifiedEvent
}

type NotifiedEvent struct {
	Event   domainagg.NotificationEvent
	Payload map[string]any
}

var _ domainagg.Notifier = (*FakeNotifier)(nil)

func (n *FakeNotifier) Notify(_ context.Context, event domainagg.NotificationEvent, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, NotifiedEvent{Event: event, Payload: payload})
	return n.Err
}

func (n *FakeNotifier) Count(event domainagg.NotificationEvent) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.Events {
		if e.Event == event {
			c++
		}
	}
	return c
}

// FakeRenderQueue records enqueued jobs.
type FakeRenderQueue struct {
	mu sync.Mutex

	Err  error
	Jobs []domainagg.RenderJob
}

var _ domainagg.RenderQueue = (*FakeRenderQueue)(nil)

func (q *FakeRenderQueue) Enqueue(_ context.Context, job domainagg.RenderJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Jobs = append(q.Jobs, job)
	return q.Err
}

func (q *FakeRenderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Jobs)
}

// StaticAuthorizer allows everything unless Deny is set or the actor is in Denied.
type StaticAuthorizer struct {
	Deny   bool
	Denied map[string]bool
}

var _ domainagg.Authorizer = StaticAuthorizer{}

func (a StaticAuthorizer) Authorize(actor audit.ActorContext, _ batches.Owner) bool {
	if a.Deny {
		return false
	}
	return !a.Denied[actor.ID.String()]
}
