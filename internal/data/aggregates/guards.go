package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

// CASGuard applies status-conditioned updates. A lifecycle move only lands
// when the row is still in one of the states the caller read it in.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByStatus writes updates to table row id only while its status is one
// of fromStatuses. It reports whether a row was changed.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, fromStatuses []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for a status guarded update")
	}
	if len(fromStatuses) == 0 {
		return false, ValidationError("at least one source status is required")
	}
	if len(updates) == 0 {
		return false, ValidationError("status guarded update has no fields")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess turns a lost status race into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "row changed concurrently"
	}
	return ConflictError(message)
}
