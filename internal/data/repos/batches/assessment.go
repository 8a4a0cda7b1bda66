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

type AssessmentRepo interface {
	Create(dbc dbctx.Context, row *types.Assessment) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	GetByBatchAndEmployee(dbc dbctx.Context, batchID, employeeID uuid.UUID) (*types.Assessment, error)
	ListByBatchID(dbc dbctx.Context, batchID uuid.UUID) ([]*types.Assessment, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, row *types.Assessment) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *assessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Assessment
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *assessmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Assessment
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

func (r *assessmentRepo) GetByBatchAndEmployee(dbc dbctx.Context, batchID, employeeID uuid.UUID) (*types.Assessment, error) {
	if batchID == uuid.Nil || employeeID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Assessment
	err := t.WithContext(dbc.Ctx).
		Where("batch_id = ? AND employee_id = ?", batchID, employeeID).
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

func (r *assessmentRepo) ListByBatchID(dbc dbctx.Context, batchID uuid.UUID) ([]*types.Assessment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Assessment
	if batchID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("batch_id = ?", batchID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assessmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Assessment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
