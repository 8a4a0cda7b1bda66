package batches

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// EmissionRequestRepo owns the per-batch mutex table. Insert surfaces the raw
// unique violation; callers classify it.
type EmissionRequestRepo interface {
	Insert(dbc dbctx.Context, row *types.EmissionRequest) error
	GetByBatchID(dbc dbctx.Context, batchID uuid.UUID) (*types.EmissionRequest, error)
}

type emissionRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmissionRequestRepo(db *gorm.DB, baseLog *logger.Logger) EmissionRequestRepo {
	return &emissionRequestRepo{db: db, log: baseLog.With("repo", "EmissionRequestRepo")}
}

func (r *emissionRequestRepo) Insert(dbc dbctx.Context, row *types.EmissionRequest) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *emissionRequestRepo) GetByBatchID(dbc dbctx.Context, batchID uuid.UUID) (*types.EmissionRequest, error) {
	if batchID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.EmissionRequest
	if err := t.WithContext(dbc.Ctx).Where("batch_id = ?", batchID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.BatchID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
