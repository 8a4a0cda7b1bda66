package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// Renderer produces the report document and its sha256 content hash.
type Renderer interface {
	Render(ctx context.Context, reportID uuid.UUID) (content []byte, contentHash string, err error)
}

// ReportStore persists rendered documents.
type ReportStore interface {
	Store(ctx context.Context, reportID uuid.UUID, content []byte) (storageRef string, err error)
	Fetch(ctx context.Context, storageRef string) ([]byte, error)
}

type NotificationEvent string

const (
	EventBatchConcluded  NotificationEvent = "batch.concluded"
	EventReportRequested NotificationEvent = "report.requested"
	EventReportSent      NotificationEvent = "report.sent"
)

// Notifier is fire-and-forget; callers log and drop its errors.
type Notifier interface {
	Notify(ctx context.Context, event NotificationEvent, payload map[string]any) error
}

// Authorizer decides whether an actor may act on behalf of a batch owner.
type Authorizer interface {
	Authorize(actor audit.ActorContext, owner batches.Owner) bool
}

// RenderJob is what the emission coordinator hands off after commit.
type RenderJob struct {
	ReportID uuid.UUID `json:"report_id"`
	BatchID  uuid.UUID `json:"batch_id"`
}

// RenderQueue schedules asynchronous rendering for an issued report.
type RenderQueue interface {
	Enqueue(ctx context.Context, job RenderJob) error
}
