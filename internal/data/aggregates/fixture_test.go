package aggregates_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/batchflow-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/batchflow-backend/internal/data/repos"
	repotest "github.com/yungbote/batchflow-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	db    *gorm.DB
	repos repos.Set
	clock *testClock

	hooks    *aggtest.HooksRecorder
	notifier *aggtest.FakeNotifier
	queue    *aggtest.FakeRenderQueue

	lifecycle   domainagg.BatchLifecycleAggregate
	assessments domainagg.AssessmentAggregate
	emission    domainagg.EmissionAggregate
	reports     domainagg.ReportAggregate

	owner    batches.Owner
	manager  audit.ActorContext
	emitter  audit.ActorContext
	outsider audit.ActorContext
	system   audit.ActorContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)

	owner, err := batches.NewClinicOwner(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	f := &fixture{
		db:       db,
		repos:    repos.NewSet(db, log),
		clock:    &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		hooks:    &aggtest.HooksRecorder{},
		notifier: &aggtest.FakeNotifier{},
		queue:    &aggtest.FakeRenderQueue{},
		owner:    owner,
		manager: audit.ActorContext{
			ID:         uuid.New(),
			Role:       audit.RoleClinicManager,
			ClinicID:   owner.ClinicID,
			CompanyIDs: []uuid.UUID{owner.CompanyID},
			Meta:       audit.RequestMeta{ClientIP: "10.0.0.7", UserAgent: "fixture"},
		},
		emitter:  audit.ActorContext{ID: uuid.New(), Role: audit.RoleEmitter},
		outsider: audit.ActorContext{ID: uuid.New(), Role: audit.RoleClinicManager, ClinicID: uuid.New()},
		system:   audit.SystemActor(uuid.New()),
	}

	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: f.hooks, Now: f.clock.Now}
	trail := aggregates.NewAuditTrail(f.repos.Audit, log, f.hooks)
	authz := aggtest.StaticAuthorizer{Denied: map[string]bool{f.outsider.ID.String(): true}}

	f.lifecycle = aggregates.NewBatchLifecycleAggregate(aggregates.BatchLifecycleAggregateDeps{
		Base:        base,
		Batches:     f.repos.Batches,
		Assessments: f.repos.Assessments,
		Employees:   f.repos.Employees,
		Audit:       trail,
		Authorizer:  authz,
		Notifier:    f.notifier,
	})
	f.assessments = aggregates.NewAssessmentAggregate(aggregates.AssessmentAggregateDeps{
		Base:        base,
		Batches:     f.repos.Batches,
		Assessments: f.repos.Assessments,
		Employees:   f.repos.Employees,
		Responses:   f.repos.Responses,
		Audit:       trail,
		Authorizer:  authz,
		Notifier:    f.notifier,
	})
	f.emission = aggregates.NewEmissionAggregate(aggregates.EmissionAggregateDeps{
		Base:             base,
		Batches:          f.repos.Batches,
		Reports:          f.repos.Reports,
		EmissionRequests: f.repos.EmissionRequests,
		ReportArtifacts:  f.repos.ReportArtifacts,
		Audit:            trail,
		Authorizer:       authz,
		Notifier:         f.notifier,
		Queue:            f.queue,
	})
	f.reports = aggregates.NewReportAggregate(aggregates.ReportAggregateDeps{
		Base:            base,
		Reports:         f.repos.Reports,
		ReportArtifacts: f.repos.ReportArtifacts,
		Audit:           trail,
	})
	return f
}

func (f *fixture) dbc() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

func (f *fixture) seedEmployee(t *testing.T) *batches.Employee {
	t.Helper()
	companyID := f.owner.CompanyID
	e := &batches.Employee{
		ID:        uuid.New(),
		Name:      "employee " + uuid.NewString()[:8],
		Tier:      batches.TierOperational,
		CompanyID: &companyID,
	}
	if err := f.repos.Employees.Create(f.dbc(), e); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return e
}

func (f *fixture) createBatch(t *testing.T) batches.Batch {
	t.Helper()
	res, err := f.lifecycle.CreateBatch(context.Background(), domainagg.CreateBatchInput{
		Actor: f.manager,
		Owner: f.owner,
		Code:  "L-" + uuid.NewString(),
		Title: "fixture batch",
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	return res.Batch
}

func (f *fixture) release(t *testing.T, batchID uuid.UUID, employeeID uuid.UUID) batches.Assessment {
	t.Helper()
	res, err := f.lifecycle.ReleaseAssessment(context.Background(), domainagg.ReleaseAssessmentInput{
		Actor:      f.manager,
		BatchID:    batchID,
		EmployeeID: employeeID,
	})
	if err != nil {
		t.Fatalf("ReleaseAssessment: %v", err)
	}
	return res.Assessment
}

func fullResponses() []domainagg.ResponseInput {
	keys := batches.QuestionnaireFor(batches.TierOperational).Keys()
	out := make([]domainagg.ResponseInput, 0, len(keys))
	for _, k := range keys {
		out = append(out, domainagg.ResponseInput{Group: k.Group, Item: k.Item, Value: 50})
	}
	return out
}

func (f *fixture) complete(t *testing.T, assessmentID uuid.UUID) domainagg.RecordResponsesResult {
	t.Helper()
	res, err := f.assessments.RecordResponses(context.Background(), domainagg.RecordResponsesInput{
		Actor:        f.manager,
		AssessmentID: assessmentID,
		Responses:    fullResponses(),
	})
	if err != nil {
		t.Fatalf("RecordResponses: %v", err)
	}
	if !res.AutoCompleted {
		t.Fatalf("RecordResponses: want auto-complete got=%+v", res)
	}
	return res
}

func (f *fixture) inactivate(t *testing.T, assessmentID uuid.UUID) domainagg.TransitionAssessmentResult {
	t.Helper()
	res, err := f.assessments.TransitionAssessment(context.Background(), domainagg.TransitionAssessmentInput{
		Actor:        f.manager,
		AssessmentID: assessmentID,
		To:           batches.AssessmentInactivated,
		Reason:       "left the company",
	})
	if err != nil {
		t.Fatalf("inactivate: %v", err)
	}
	return res
}

// concludedBatch builds a batch with n completed assessments.
func (f *fixture) concludedBatch(t *testing.T, n int) batches.Batch {
	t.Helper()
	b := f.createBatch(t)
	for i := 0; i < n; i++ {
		a := f.release(t, b.ID, f.seedEmployee(t).ID)
		f.complete(t, a.ID)
	}
	got := f.batch(t, b.ID)
	if got.Status != batches.BatchConcluded {
		t.Fatalf("concludedBatch: want=concluded got=%s", got.Status)
	}
	return *got
}

func (f *fixture) batch(t *testing.T, id uuid.UUID) *batches.Batch {
	t.Helper()
	b, err := f.repos.Batches.GetByID(f.dbc(), id)
	if err != nil || b == nil {
		t.Fatalf("load batch %s: err=%v", id, err)
	}
	return b
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func wantCode(t *testing.T, label string, err error, codes ...domainagg.ErrorCode) {
	t.Helper()
	got := domainagg.CodeOf(err)
	for _, c := range codes {
		if got == c {
			return
		}
	}
	t.Fatalf("%s: want code in %v got=%q (%v)", label, codes, got, err)
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
