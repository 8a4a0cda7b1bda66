package aggregates_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/batchflow-backend/internal/data/aggregates/testutil"
	repotest "github.com/yungbote/batchflow-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// On sqlite writers are serialized, so most losers here read the committed
// status and get AlreadyIssued. TestRequestEmissionContendedMutexOnPostgres
// covers losers that reach the unique insert.
func TestRequestEmissionExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	b := f.concludedBatch(t, 2)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		reports []uuid.UUID
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.emission.RequestEmission(context.Background(), domainagg.RequestEmissionInput{
				Actor:   f.manager,
				BatchID: b.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			wins++
			reports = append(reports, res.Report.ID)
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners: want=1 got=%d errs=%v", wins, errs)
	}
	if len(errs) != callers-1 {
		t.Fatalf("losers: want=%d got=%d", callers-1, len(errs))
	}
	for _, err := range errs {
		wantCode(t, "loser", err, domainagg.CodeAlreadyRequested, domainagg.CodeAlreadyIssued)
	}
	if got := f.hooks.ConflictsFor("Batches.Emission.RequestEmission"); got != callers-1 {
		t.Fatalf("conflict hooks: want=%d got=%d", callers-1, got)
	}
	if n := f.count(t, &batches.Report{}, "batch_id = ?", b.ID); n != 1 {
		t.Fatalf("reports: want=1 got=%d", n)
	}
	if n := f.count(t, &batches.EmissionRequest{}, "batch_id = ?", b.ID); n != 1 {
		t.Fatalf("emission requests: want=1 got=%d", n)
	}
	if got := f.batch(t, b.ID).Status; got != batches.BatchIssued {
		t.Fatalf("status: want=issued got=%s", got)
	}
	if f.queue.Len() != 1 || f.queue.Jobs[0].ReportID != reports[0] {
		t.Fatalf("render queue: want one job for %s got=%+v", reports[0], f.queue.Jobs)
	}
	if got := f.notifier.Count(domainagg.EventReportRequested); got != 1 {
		t.Fatalf("report.requested notifications: want=1 got=%d", got)
	}
	if n := f.count(t, &audit.Entry{}, "action = ? AND resource_id = ?", audit.ActionEmissionRejected, b.ID); n != callers-1 {
		t.Fatalf("rejection audit entries: want=%d got=%d", callers-1, n)
	}
}

func TestRequestEmissionContendedMutexOnPostgres(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	f := newFixture(t)
	b := f.concludedBatch(t, 1)

	// An open transaction holds the batch key so every caller passes the
	// status checks and waits on the unique index.
	holder := f.db.Begin()
	if holder.Error != nil {
		t.Fatalf("begin holder: %v", holder.Error)
	}
	if err := holder.Create(&batches.EmissionRequest{
		BatchID:       b.ID,
		RequestedBy:   f.emitter.ID,
		RequestedRole: string(f.emitter.Role),
		CreatedAt:     time.Now().UTC(),
	}).Error; err != nil {
		_ = holder.Rollback().Error
		t.Fatalf("hold mutex: %v", err)
	}

	const callers = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.emission.RequestEmission(context.Background(), domainagg.RequestEmissionInput{Actor: f.manager, BatchID: b.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			wins++
		}()
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		var waiting int64
		if err := f.db.Raw(`SELECT count(*) FROM pg_stat_activity
			WHERE datname = current_database() AND wait_event_type = 'Lock' AND query ILIKE '%emission_requests%'`).Scan(&waiting).Error; err != nil {
			_ = holder.Rollback().Error
			t.Fatalf("pg_stat_activity: %v", err)
		}
		if waiting >= callers {
			break
		}
		if time.Now().After(deadline) {
			_ = holder.Rollback().Error
			wg.Wait()
			t.Fatalf("callers waiting on mutex: want=%d got=%d", callers, waiting)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := holder.Rollback().Error; err != nil {
		t.Fatalf("release holder: %v", err)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners: want=1 got=%d errs=%v", wins, errs)
	}
	for _, err := range errs {
		wantCode(t, "contended loser", err, domainagg.CodeAlreadyRequested)
	}
	if n := f.count(t, &batches.EmissionRequest{}, "batch_id = ?", b.ID); n != 1 {
		t.Fatalf("emission requests: want=1 got=%d", n)
	}
	if n := f.count(t, &batches.Report{}, "batch_id = ?", b.ID); n != 1 {
		t.Fatalf("reports: want=1 got=%d", n)
	}
}

func TestRequestEmissionHeldMutexIsAlreadyRequested(t *testing.T) {
	f := newFixture(t)
	b := f.concludedBatch(t, 1)

	if err := f.repos.EmissionRequests.Insert(f.dbc(), &batches.EmissionRequest{
		BatchID:       b.ID,
		RequestedBy:   f.emitter.ID,
		RequestedRole: string(f.emitter.Role),
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed mutex: %v", err)
	}

	_, err := f.emission.RequestEmission(context.Background(), domainagg.RequestEmissionInput{Actor: f.manager, BatchID: b.ID})
	wantCode(t, "held mutex", err, domainagg.CodeAlreadyRequested)

	if got := f.batch(t, b.ID).Status; got != batches.BatchConcluded {
		t.Fatalf("status after rejected request: want=concluded got=%s", got)
	}
	if n := f.count(t, &batches.Report{}, "batch_id = ?", b.ID); n != 0 {
		t.Fatalf("reports: want=0 got=%d", n)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("render queue: want empty got=%d", f.queue.Len())
	}
}

func TestRequestEmissionPreconditionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.manager, BatchID: uuid.New()})
	wantCode(t, "missing batch", err, domainagg.CodeNotFound)

	active := f.createBatch(t)
	f.release(t, active.ID, f.seedEmployee(t).ID)

	// Authorization is checked before status.
	_, err = f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.outsider, BatchID: active.ID})
	wantCode(t, "outsider", err, domainagg.CodeUnauthorized)

	_, err = f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.manager, BatchID: active.ID})
	wantCode(t, "active batch", err, domainagg.CodeInvalidTransition)

	_, err = f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{BatchID: active.ID})
	wantCode(t, "missing actor", err, domainagg.CodeUnauthorized)

	concluded := f.concludedBatch(t, 1)
	if _, err := f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.manager, BatchID: concluded.ID}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err = f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.manager, BatchID: concluded.ID})
	wantCode(t, "second request", err, domainagg.CodeAlreadyIssued)
}

func TestRequestEmissionCreatesIssuedReport(t *testing.T) {
	f := newFixture(t)
	b := f.concludedBatch(t, 1)

	res, err := f.emission.RequestEmission(context.Background(), domainagg.RequestEmissionInput{Actor: f.emitter, BatchID: b.ID})
	if err != nil {
		t.Fatalf("RequestEmission: %v", err)
	}
	if res.Emergency {
		t.Fatalf("emergency: want=false")
	}
	r, err := f.repos.Reports.GetByBatchID(f.dbc(), b.ID)
	if err != nil || r == nil {
		t.Fatalf("GetByBatchID: r=%v err=%v", r, err)
	}
	if r.Status != batches.ReportIssued || r.IssuedAt == nil || r.Finalized() {
		t.Fatalf("report: want issued without hash got=%+v", r)
	}
	if r.EmitterID != f.emitter.ID || r.EmitterRole != string(audit.RoleEmitter) {
		t.Fatalf("report emitter: want=%s got=%s/%s", f.emitter.ID, r.EmitterID, r.EmitterRole)
	}
	got := f.batch(t, b.ID)
	if got.EmissionRequestedAt == nil || got.IssuedAt == nil {
		t.Fatalf("batch timestamps: want both set got=%+v", got)
	}
}

func TestMarkBatchSentRequiresStoredFinalizedReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.concludedBatch(t, 1)

	res, err := f.emission.RequestEmission(ctx, domainagg.RequestEmissionInput{Actor: f.emitter, BatchID: b.ID})
	if err != nil {
		t.Fatalf("RequestEmission: %v", err)
	}
	reportID := res.Report.ID

	_, err = f.emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{Actor: f.manager, BatchID: b.ID})
	wantCode(t, "manager", err, domainagg.CodeUnauthorized)

	_, err = f.emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{Actor: f.system, BatchID: b.ID})
	wantCode(t, "unfinalized", err, domainagg.CodeInvalidTransition)

	if _, err := f.reports.BackfillReportHash(ctx, domainagg.BackfillReportHashInput{
		Actor: f.system, ReportID: reportID, ContentHash: hashOf("pdf"),
	}); err != nil {
		t.Fatalf("BackfillReportHash: %v", err)
	}
	_, err = f.emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{Actor: f.system, BatchID: b.ID})
	wantCode(t, "not stored", err, domainagg.CodeInvalidTransition)

	if _, err := f.reports.RecordReportArtifact(ctx, domainagg.RecordReportArtifactInput{
		Actor: f.system, ReportID: reportID, StorageRef: "gs://reports/" + reportID.String() + ".pdf", SizeBytes: 3,
	}); err != nil {
		t.Fatalf("RecordReportArtifact: %v", err)
	}
	sent, err := f.emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{Actor: f.system, BatchID: b.ID})
	if err != nil {
		t.Fatalf("MarkBatchSent: %v", err)
	}
	if got := f.batch(t, b.ID); got.Status != batches.BatchSent || got.SentAt == nil {
		t.Fatalf("batch: want sent got=%s", got.Status)
	}

	again, err := f.emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{Actor: f.system, BatchID: b.ID})
	if err != nil {
		t.Fatalf("MarkBatchSent again: %v", err)
	}
	if !again.SentAt.Equal(sent.SentAt) {
		t.Fatalf("idempotent sent_at: want=%s got=%s", sent.SentAt, again.SentAt)
	}
	if got := f.notifier.Count(domainagg.EventReportSent); got != 1 {
		t.Fatalf("report.sent notifications: want=1 got=%d", got)
	}
}

func TestRequestEmissionCommitFailureLeavesNoWinner(t *testing.T) {
	f := newFixture(t)
	b := f.concludedBatch(t, 1)
	log := repotest.Logger(t)

	runner := &aggtest.FaultyTxRunner{DB: f.db, FailCommit: errors.New("connection reset during commit")}
	faulty := aggregates.NewEmissionAggregate(aggregates.EmissionAggregateDeps{
		Base:             aggregates.BaseDeps{DB: f.db, Log: log, Runner: runner, Hooks: f.hooks, Now: f.clock.Now},
		Batches:          f.repos.Batches,
		Reports:          f.repos.Reports,
		EmissionRequests: f.repos.EmissionRequests,
		ReportArtifacts:  f.repos.ReportArtifacts,
		Audit:            aggregates.NewAuditTrail(f.repos.Audit, log, f.hooks),
		Authorizer:       aggtest.StaticAuthorizer{},
		Notifier:         f.notifier,
		Queue:            f.queue,
	})

	if _, err := faulty.RequestEmission(context.Background(), domainagg.RequestEmissionInput{Actor: f.manager, BatchID: b.ID}); err == nil {
		t.Fatalf("expected commit failure to surface")
	}
	if runner.Commits != 0 || runner.Rollbacks < 1 {
		t.Fatalf("runner: commits=%d rollbacks=%d", runner.Commits, runner.Rollbacks)
	}
	if n := f.count(t, &batches.EmissionRequest{}, "batch_id = ?", b.ID); n != 0 {
		t.Fatalf("emission requests after rollback: want=0 got=%d", n)
	}
	if n := f.count(t, &batches.Report{}, "batch_id = ?", b.ID); n != 0 {
		t.Fatalf("reports after rollback: want=0 got=%d", n)
	}
	if got := f.batch(t, b.ID).Status; got != batches.BatchConcluded {
		t.Fatalf("status after rollback: want=concluded got=%s", got)
	}
	if f.queue.Len() != 0 || f.notifier.Count(domainagg.EventReportRequested) != 0 {
		t.Fatalf("after-commit effects ran for a rolled back unit")
	}

	if _, err := f.emission.RequestEmission(context.Background(), domainagg.RequestEmissionInput{Actor: f.manager, BatchID: b.ID}); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if got := f.batch(t, b.ID).Status; got != batches.BatchIssued {
		t.Fatalf("status after retry: want=issued got=%s", got)
	}
}
