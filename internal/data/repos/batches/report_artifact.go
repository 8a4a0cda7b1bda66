package batches

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type ReportArtifactRepo interface {
	Create(dbc dbctx.Context, row *types.ReportArtifact) error
	GetByReportID(dbc dbctx.Context, reportID uuid.UUID) (*types.ReportArtifact, error)
}

type reportArtifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ReportArtifactRepo {
	return &reportArtifactRepo{db: db, log: baseLog.With("repo", "ReportArtifactRepo")}
}

func (r *reportArtifactRepo) Create(dbc dbctx.Context, row *types.ReportArtifact) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *reportArtifactRepo) GetByReportID(dbc dbctx.Context, reportID uuid.UUID) (*types.ReportArtifact, error) {
	if reportID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.ReportArtifact
	if err := t.WithContext(dbc.Ctx).Where("report_id = ?", reportID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ReportID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
