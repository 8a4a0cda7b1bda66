package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
)

// MissingHashLister finds issued reports that never had their hash written.
type MissingHashLister interface {
	ListMissingHash(dbc dbctx.Context, limit int) ([]*batches.Report, error)
}

type BackfillSummary struct {
	Scanned    int
	Backfilled int
	// NoArtifact counts reports with nothing stored yet; the pipeline owns those.
	NoArtifact int
	Failed     []uuid.UUID
}

// BackfillStoredHashes hashes already-stored documents for reports whose hash
// is missing and writes it through the report aggregate. With dryRun set the
// hash is computed but not written.
func (p *Pipeline) BackfillStoredHashes(ctx context.Context, lister MissingHashLister, limit int, dryRun bool) (BackfillSummary, error) {
	var sum BackfillSummary
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := lister.ListMissingHash(dbc, limit)
	if err != nil {
		return sum, err
	}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Scanned++
		art, err := p.deps.Artifacts.GetByReportID(dbc, r.ID)
		if err != nil {
			return sum, err
		}
		if art == nil {
			sum.NoArtifact++
			continue
		}
		content, err := resilience.Call(ctx, p.deps.Executor, OpStore, p.storePolicy, func(ctx context.Context) ([]byte, error) {
			return p.deps.Store.Fetch(ctx, art.StorageRef)
		})
		if err != nil {
			p.log.Warn("fetch stored report failed", "report_id", r.ID, "storage_ref", art.StorageRef, "error", err)
			sum.Failed = append(sum.Failed, r.ID)
			continue
		}
		digest := sha256.Sum256(content)
		hash := hex.EncodeToString(digest[:])
		if dryRun {
			p.log.Info("backfill dry run", "report_id", r.ID, "content_hash", hash)
			sum.Backfilled++
			continue
		}
		if err := p.backfill(ctx, r.ID, hash); err != nil {
			p.log.Warn("hash backfill failed", "report_id", r.ID, "error", err)
			sum.Failed = append(sum.Failed, r.ID)
			continue
		}
		sum.Backfilled++
	}
	return sum, nil
}
