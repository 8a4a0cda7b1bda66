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

type BatchRepo interface {
	Create(dbc dbctx.Context, row *types.Batch) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error)

	// CountAssessments tallies the batch's assessments by status.
	CountAssessments(dbc dbctx.Context, id uuid.UUID) (types.AssessmentCounts, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	ListByStatus(dbc dbctx.Context, statuses []types.BatchStatus, limit int) ([]*types.Batch, error)
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{db: db, log: baseLog.With("repo", "BatchRepo")}
}

func (r *batchRepo) Create(dbc dbctx.Context, row *types.Batch) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *batchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Batch
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *batchRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Batch
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *batchRepo) CountAssessments(dbc dbctx.Context, id uuid.UUID) (types.AssessmentCounts, error) {
	var out types.AssessmentCounts
	if id == uuid.Nil {
		return out, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []struct {
		Status string
		Count  int
	}
	err := t.WithContext(dbc.Ctx).
		Model(&types.Assessment{}).
		Select("status, count(*) as count").
		Where("batch_id = ?", id).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}
	for _, row := range rows {
		st, err := types.ParseAssessmentStatus(row.Status)
		if err != nil {
			return types.AssessmentCounts{}, err
		}
		out.Total += row.Count
		switch st {
		case types.AssessmentCompleted:
			out.Completed += row.Count
		case types.AssessmentInactivated:
			out.Inactivated += row.Count
		}
	}
	return out, nil
}

func (r *batchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Batch{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *batchRepo) ListByStatus(dbc dbctx.Context, statuses []types.BatchStatus, limit int) ([]*types.Batch, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Batch
	if len(statuses) == 0 {
		return out, nil
	}
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, s.String())
	}
	q := t.WithContext(dbc.Ctx).Where("status IN ?", raw).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
