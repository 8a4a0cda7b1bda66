package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/batchflow-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/batchflow-backend/internal/data/repos"
	repotest "github.com/yungbote/batchflow-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
)

type statusErr int

func (e statusErr) Error() string   { return "renderer unavailable" }
func (e statusErr) StatusCode() int { return int(e) }

type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	content  []byte
	badHash  bool
	failures []error
}

func (r *fakeRenderer) Render(_ context.Context, _ uuid.UUID) ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, "", err
	}
	sum := sha256.Sum256(r.content)
	hash := hex.EncodeToString(sum[:])
	if r.badHash {
		hash = hex.EncodeToString(make([]byte, 32))
	}
	return r.content, hash, nil
}

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	objects map[string][]byte
	err     error
}

func (s *fakeStore) Store(_ context.Context, reportID uuid.UUID, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		err := s.err
		s.err = nil
		return "", err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	ref := "gs://test/reports/" + reportID.String() + ".pdf"
	s.objects[ref] = content
	return ref, nil
}

func (s *fakeStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

type stageSpy struct {
	mu     sync.Mutex
	stages []string
}

func (s *stageSpy) ObserveIssuanceStage(stage, status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage+"/"+status)
}

type pipelineFixture struct {
	set      repos.Set
	renderer *fakeRenderer
	store    *fakeStore
	stages   *stageSpy
	pipeline *Pipeline
	batch    *batches.Batch
	report   *batches.Report
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)

	base := aggregates.BaseDeps{DB: db, Log: log}
	trail := aggregates.NewAuditTrail(set.Audit, log, nil)
	reportAgg := aggregates.NewReportAggregate(aggregates.ReportAggregateDeps{
		Base:            base,
		Reports:         set.Reports,
		ReportArtifacts: set.ReportArtifacts,
		Audit:           trail,
	})
	emission := aggregates.NewEmissionAggregate(aggregates.EmissionAggregateDeps{
		Base:             base,
		Batches:          set.Batches,
		Reports:          set.Reports,
		EmissionRequests: set.EmissionRequests,
		ReportArtifacts:  set.ReportArtifacts,
		Audit:            trail,
		Authorizer:       aggtest.StaticAuthorizer{},
		Notifier:         &aggtest.FakeNotifier{},
		Queue:            &aggtest.FakeRenderQueue{},
	})

	owner, _ := batches.NewEntityOwner(uuid.New())
	b, r := repotest.SeedIssuedReport(t, context.Background(), db, owner, uuid.New())

	f := &pipelineFixture{
		set:      set,
		renderer: &fakeRenderer{content: []byte("%PDF-1.7 " + r.ID.String())},
		store:    &fakeStore{},
		stages:   &stageSpy{},
		batch:    b,
		report:   r,
	}
	exec := resilience.New(
		resilience.WithLogger(log),
		resilience.WithClock(time.Now, func(context.Context, time.Duration) error { return nil }),
	)
	p, err := New(Deps{
		Log:       log,
		Reports:   set.Reports,
		Artifacts: set.ReportArtifacts,
		Renderer:  f.renderer,
		Store:     f.store,
		ReportAgg: reportAgg,
		Emission:  emission,
		Executor:  exec,
		Stages:    f.stages,
		Actor:     audit.SystemActor(uuid.New()),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.pipeline = p
	return f
}

func (f *pipelineFixture) reload(t *testing.T) (*batches.Batch, *batches.Report, *batches.ReportArtifact) {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	b, err := f.set.Batches.GetByID(dbc, f.batch.ID)
	if err != nil {
		t.Fatalf("GetByID batch: %v", err)
	}
	r, err := f.set.Reports.GetByID(dbc, f.report.ID)
	if err != nil {
		t.Fatalf("GetByID report: %v", err)
	}
	a, err := f.set.ReportArtifacts.GetByReportID(dbc, f.report.ID)
	if err != nil {
		t.Fatalf("GetByReportID: %v", err)
	}
	return b, r, a
}

func TestPipelineFinalizesAndSends(t *testing.T) {
	f := newPipelineFixture(t)

	res, err := f.pipeline.Run(context.Background(), f.report.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sum := sha256.Sum256(f.renderer.content)
	if want := hex.EncodeToString(sum[:]); res.ContentHash != want {
		t.Fatalf("hash: want=%s got=%s", want, res.ContentHash)
	}
	if res.Replayed || res.SentAt.IsZero() {
		t.Fatalf("result: got=%+v", res)
	}

	b, r, a := f.reload(t)
	if b.Status != batches.BatchSent {
		t.Fatalf("batch status: want=sent got=%s", b.Status)
	}
	if !r.Finalized() || *r.ContentHash != res.ContentHash {
		t.Fatalf("report hash: got=%v", r.ContentHash)
	}
	if a == nil || a.StorageRef != res.StorageRef || a.SizeBytes != int64(len(f.renderer.content)) {
		t.Fatalf("artifact: got=%+v", a)
	}
	want := []string{"render/ok", "store/ok", "backfill/ok", "artifact/ok", "mark_sent/ok"}
	if len(f.stages.stages) != len(want) {
		t.Fatalf("stages: want=%v got=%v", want, f.stages.stages)
	}
	for i := range want {
		if f.stages.stages[i] != want[i] {
			t.Fatalf("stage %d: want=%s got=%s", i, want[i], f.stages.stages[i])
		}
	}
}

func TestPipelineReplayIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	first, err := f.pipeline.Run(ctx, f.report.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := f.pipeline.Run(ctx, f.report.ID)
	if err != nil {
		t.Fatalf("Run replay: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("replay: want Replayed=true")
	}
	if !second.SentAt.Equal(first.SentAt) || second.StorageRef != first.StorageRef {
		t.Fatalf("replay result: first=%+v second=%+v", first, second)
	}
	if f.renderer.calls != 1 || f.store.calls != 1 {
		t.Fatalf("side effects: renders=%d stores=%d", f.renderer.calls, f.store.calls)
	}
}

func TestPipelineRetriesTransientRenderFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.failures = []error{statusErr(503), statusErr(502)}

	if _, err := f.pipeline.Run(context.Background(), f.report.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.renderer.calls != 3 {
		t.Fatalf("render attempts: want=3 got=%d", f.renderer.calls)
	}
}

func TestPipelineRejectsHashMismatch(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.badHash = true

	_, err := f.pipeline.Run(context.Background(), f.report.ID)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("Run: want ErrHashMismatch got=%v", err)
	}
	if f.renderer.calls != 1 {
		t.Fatalf("mismatch must not be retried: calls=%d", f.renderer.calls)
	}
	if f.store.calls != 0 {
		t.Fatalf("store: want=0 got=%d", f.store.calls)
	}
	b, r, a := f.reload(t)
	if b.Status != batches.BatchIssued || r.Finalized() || a != nil {
		t.Fatalf("state changed: batch=%s finalized=%v artifact=%v", b.Status, r.Finalized(), a)
	}
}

func TestPipelineResumesAfterStoreFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.err = errors.New("bucket missing")
	ctx := context.Background()

	if _, err := f.pipeline.Run(ctx, f.report.ID); err == nil {
		t.Fatalf("Run: expected store error")
	}
	_, r, _ := f.reload(t)
	if r.Finalized() {
		t.Fatalf("hash must not be written before the document is stored")
	}

	res, err := f.pipeline.Run(ctx, f.report.ID)
	if err != nil {
		t.Fatalf("Run retry: %v", err)
	}
	if res.Replayed {
		t.Fatalf("retry is not a replay")
	}
	b, _, _ := f.reload(t)
	if b.Status != batches.BatchSent {
		t.Fatalf("batch status: want=sent got=%s", b.Status)
	}
}

func TestPipelineUnknownReport(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.pipeline.Run(context.Background(), uuid.New())
	if domainagg.CodeOf(err) != domainagg.CodeNotFound {
		t.Fatalf("code: want=%s got=%s (%v)", domainagg.CodeNotFound, domainagg.CodeOf(err), err)
	}
}
