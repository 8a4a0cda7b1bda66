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

type ResponseRepo interface {
	// Upsert writes the answers; re-answering a question overwrites its value.
	Upsert(dbc dbctx.Context, rows []*types.Response) error
	ListByAssessmentID(dbc dbctx.Context, assessmentID uuid.UUID) ([]*types.Response, error)
	ListKeys(dbc dbctx.Context, assessmentID uuid.UUID) ([]types.QuestionKey, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	return &responseRepo{db: db, log: baseLog.With("repo", "ResponseRepo")}
}

func (r *responseRepo) Upsert(dbc dbctx.Context, rows []*types.Response) error {
	if len(rows) == 0 {
		return nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "assessment_id"},
				{Name: "question_group"},
				{Name: "item"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *responseRepo) ListByAssessmentID(dbc dbctx.Context, assessmentID uuid.UUID) ([]*types.Response, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Response
	if assessmentID == uuid.Nil {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("assessment_id = ?", assessmentID).
		Order("question_group ASC, item ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *responseRepo) ListKeys(dbc dbctx.Context, assessmentID uuid.UUID) ([]types.QuestionKey, error) {
	rows, err := r.ListByAssessmentID(dbc, assessmentID)
	if err != nil {
		return nil, err
	}
	out := make([]types.QuestionKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Key())
	}
	return out, nil
}
