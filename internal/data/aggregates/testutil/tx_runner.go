package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

// FaultyTxRunner runs units of work in real transactions on DB and can fail
// them at begin or right before commit. With a nil DB the body runs without
// a transaction.
type FaultyTxRunner struct {
	DB *gorm.DB

	mu         sync.Mutex
	FailBegin  error
	FailCommit error

	Begins    int
	Commits   int
	Rollbacks int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.Begins++
	failBegin, failCommit := r.FailBegin, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if fn == nil {
		r.count(&r.Commits)
		return nil
	}
	if r.DB == nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.count(&r.Rollbacks)
			return err
		}
		if failCommit != nil {
			r.count(&r.Rollbacks)
			return failCommit
		}
		r.count(&r.Commits)
		return nil
	}

	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
		tx.Rollback()
		r.count(&r.Rollbacks)
		return err
	}
	if failCommit != nil {
		tx.Rollback()
		r.count(&r.Rollbacks)
		return failCommit
	}
	if err := tx.Commit().Error; err != nil {
		r.count(&r.Rollbacks)
		return err
	}
	r.count(&r.Commits)
	return nil
}

func (r *FaultyTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
