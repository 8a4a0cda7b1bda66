package audit

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// EntryRepo is append-only. There is intentionally no update or delete.
type EntryRepo interface {
	Create(dbc dbctx.Context, row *types.Entry) error
	ListByResource(dbc dbctx.Context, resourceType string, resourceID uuid.UUID, limit int) ([]*types.Entry, error)
	ListByAction(dbc dbctx.Context, action types.Action, limit int) ([]*types.Entry, error)
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	return &entryRepo{db: db, log: baseLog.With("repo", "AuditEntryRepo")}
}

func (r *entryRepo) Create(dbc dbctx.Context, row *types.Entry) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *entryRepo) ListByResource(dbc dbctx.Context, resourceType string, resourceID uuid.UUID, limit int) ([]*types.Entry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Entry
	q := t.WithContext(dbc.Ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entryRepo) ListByAction(dbc dbctx.Context, action types.Action, limit int) ([]*types.Entry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Entry
	q := t.WithContext(dbc.Ctx).Where("action = ?", action).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
