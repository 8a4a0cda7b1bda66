package batches

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// ReportRepo is storage only. Every write to an existing report must go
// through the report mutation aggregate, which applies the immutability guard.
type ReportRepo interface {
	Create(dbc dbctx.Context, row *types.Report) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Report, error)
	GetByBatchID(dbc dbctx.Context, batchID uuid.UUID) (*types.Report, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Report, error)
	// ListMissingHash returns issued reports whose content hash was never
	// written, oldest first.
	ListMissingHash(dbc dbctx.Context, limit int) ([]*types.Report, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) Create(dbc dbctx.Context, row *types.Report) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *reportRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Report, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, false, "id = ?", id)
}

func (r *reportRepo) GetByBatchID(dbc dbctx.Context, batchID uuid.UUID) (*types.Report, error) {
	if batchID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, false, "batch_id = ?", batchID)
}

func (r *reportRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Report, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, true, "id = ?", id)
}

func (r *reportRepo) ListMissingHash(dbc dbctx.Context, limit int) ([]*types.Report, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).
		Where("status = ?", types.ReportIssued).
		Where("content_hash IS NULL OR content_hash = ?", "").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Report
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) first(dbc dbctx.Context, lock bool, where string, args ...interface{}) (*types.Report, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.Report
	if err := q.Where(where, args...).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *reportRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Report{}).
		Where("id = ?", id).
		Updates(updates).Error
}
