package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// SeedBatch inserts a batch directly in the given status, bypassing the
// lifecycle aggregate. Use it for tests of code that runs after emission.
func SeedBatch(tb testing.TB, ctx context.Context, tx *gorm.DB, owner batches.Owner, status batches.BatchStatus) *batches.Batch {
	tb.Helper()
	b, err := batches.NewBatch(owner, "seed-"+uuid.NewString(), "Seeded batch", uuid.New())
	if err != nil {
		tb.Fatalf("SeedBatch: %v", err)
	}
	now := time.Now().UTC()
	b.Status = status
	if status != batches.BatchActive && status != batches.BatchCancelled {
		b.ConcludedAt = PtrTime(now)
	}
	if status.PastConcluded() {
		b.EmissionRequestedAt = PtrTime(now)
	}
	if status == batches.BatchIssued || status == batches.BatchSent {
		b.IssuedAt = PtrTime(now)
	}
	if status == batches.BatchSent {
		b.SentAt = PtrTime(now)
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("SeedBatch: %v", err)
	}
	return b
}

// SeedIssuedReport inserts an issued batch with its report and emission
// request, the state a render job starts from.
func SeedIssuedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, owner batches.Owner, emitterID uuid.UUID) (*batches.Batch, *batches.Report) {
	tb.Helper()
	b := SeedBatch(tb, ctx, tx, owner, batches.BatchIssued)
	req := &batches.EmissionRequest{
		BatchID:       b.ID,
		RequestedBy:   emitterID,
		RequestedRole: "emitter",
		CreatedAt:     *b.IssuedAt,
	}
	if err := tx.WithContext(ctx).Create(req).Error; err != nil {
		tb.Fatalf("SeedIssuedReport: emission request: %v", err)
	}
	r := &batches.Report{
		BatchID:     b.ID,
		Status:      batches.ReportIssued,
		IssuedAt:    b.IssuedAt,
		EmitterID:   emitterID,
		EmitterRole: "emitter",
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("SeedIssuedReport: report: %v", err)
	}
	return b, r
}

func SeedEmployee(tb testing.TB, ctx context.Context, tx *gorm.DB, owner batches.Owner, tier batches.Tier) *batches.Employee {
	tb.Helper()
	e := &batches.Employee{Name: "Seeded employee " + uuid.NewString()[:8], Tier: tier}
	switch owner.Kind {
	case batches.OwnerClinic:
		e.ClinicID, e.CompanyID = PtrUUID(owner.ClinicID), PtrUUID(owner.CompanyID)
	case batches.OwnerEntity:
		e.EntityID = PtrUUID(owner.EntityID)
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("SeedEmployee: %v", err)
	}
	return e
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
