package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

func TestBackfillStoredHashes(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	sum, err := f.pipeline.BackfillStoredHashes(ctx, f.set.Reports, 10, false)
	if err != nil {
		t.Fatalf("BackfillStoredHashes: %v", err)
	}
	if sum.Scanned != 1 || sum.NoArtifact != 1 || sum.Backfilled != 0 {
		t.Fatalf("without artifact: got=%+v", sum)
	}

	content := []byte("%PDF-1.7 legacy " + f.report.ID.String())
	ref, err := f.store.Store(ctx, f.report.ID, content)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := f.set.ReportArtifacts.Create(dbctx.Context{Ctx: ctx}, &batches.ReportArtifact{
		ReportID:    f.report.ID,
		StorageRef:  ref,
		SizeBytes:   int64(len(content)),
		ContentType: "application/pdf",
		StoredAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Create artifact: %v", err)
	}

	sum, err = f.pipeline.BackfillStoredHashes(ctx, f.set.Reports, 10, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if sum.Backfilled != 1 {
		t.Fatalf("dry run: got=%+v", sum)
	}
	if _, r, _ := f.reload(t); r.Finalized() {
		t.Fatalf("dry run must not write the hash")
	}

	sum, err = f.pipeline.BackfillStoredHashes(ctx, f.set.Reports, 10, false)
	if err != nil {
		t.Fatalf("BackfillStoredHashes: %v", err)
	}
	if sum.Backfilled != 1 || len(sum.Failed) != 0 {
		t.Fatalf("backfill: got=%+v", sum)
	}
	digest := sha256.Sum256(content)
	_, r, _ := f.reload(t)
	if !r.Finalized() || *r.ContentHash != hex.EncodeToString(digest[:]) {
		t.Fatalf("content hash: got=%v", r.ContentHash)
	}

	sum, err = f.pipeline.BackfillStoredHashes(ctx, f.set.Reports, 10, false)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if sum.Scanned != 0 {
		t.Fatalf("finalized report should not be listed: got=%+v", sum)
	}
}
