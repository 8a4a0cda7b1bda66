package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
)

const (
	OpRender = "report.render"
	OpStore  = "report.store"
)

// ErrHashMismatch means the renderer's declared hash does not match its bytes,
// or a re-render differs from the hash already frozen on the report.
var ErrHashMismatch = errors.New("rendered content does not match content hash")

type ReportReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*batches.Report, error)
}

type ArtifactReader interface {
	GetByReportID(dbc dbctx.Context, reportID uuid.UUID) (*batches.ReportArtifact, error)
}

// StageObserver receives one observation per pipeline stage.
type StageObserver interface {
	ObserveIssuanceStage(stage, status string, dur time.Duration)
}

type Deps struct {
	Log *logger.Logger

	Reports   ReportReader
	Artifacts ArtifactReader

	Renderer domainagg.Renderer
	Store    domainagg.ReportStore

	ReportAgg domainagg.ReportAggregate
	Emission  domainagg.EmissionAggregate

	Executor *resilience.Executor
	Stages   StageObserver

	// Actor performs the aggregate writes; defaults to a system actor.
	Actor audit.ActorContext
}

type Pipeline struct {
	deps         Deps
	log          *logger.Logger
	renderPolicy resilience.Policy
	storePolicy  resilience.Policy
}

type Result struct {
	ReportID    uuid.UUID
	BatchID     uuid.UUID
	ContentHash string
	StorageRef  string
	SentAt      time.Time
	// Replayed is true when the report was already finalized and stored.
	Replayed bool
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Reports == nil || deps.Artifacts == nil || deps.Renderer == nil || deps.Store == nil ||
		deps.ReportAgg == nil || deps.Emission == nil {
		return nil, fmt.Errorf("issuance pipeline: missing dependency")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Executor == nil {
		deps.Executor = resilience.New(resilience.WithLogger(deps.Log))
	}
	if deps.Actor.Validate() != nil {
		deps.Actor = audit.SystemActor(uuid.New())
	}
	return &Pipeline{
		deps:         deps,
		log:          deps.Log.With("component", "IssuancePipeline"),
		renderPolicy: resilience.PolicyRender,
		storePolicy:  resilience.PolicyStorage,
	}, nil
}

type rendered struct {
	content []byte
	hash    string
}

// Run renders, stores and finalizes one issued report, then marks its batch
// sent. Every step tolerates a replay after a partial failure.
func (p *Pipeline) Run(ctx context.Context, reportID uuid.UUID) (res Result, err error) {
	ctx, span := otel.Tracer("github.com/yungbote/batchflow-backend/internal/issuance").Start(ctx, "issuance.Run")
	span.SetAttributes(attribute.String("report.id", reportID.String()))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Bool("issuance.replayed", res.Replayed))
		span.End()
	}()
	return p.run(ctx, reportID)
}

func (p *Pipeline) run(ctx context.Context, reportID uuid.UUID) (Result, error) {
	out := Result{ReportID: reportID}
	dbc := dbctx.Context{Ctx: ctx}

	report, err := p.deps.Reports.GetByID(dbc, reportID)
	if err != nil {
		return out, err
	}
	if report == nil {
		return out, domainagg.NewError(domainagg.CodeNotFound, "issuance.Run", "report not found", nil)
	}
	if report.IssuedAt == nil || report.Status != batches.ReportIssued {
		return out, domainagg.NewError(domainagg.CodeInvalidTransition, "issuance.Run", "report has not been issued", nil)
	}
	out.BatchID = report.BatchID

	artifact, err := p.deps.Artifacts.GetByReportID(dbc, reportID)
	if err != nil {
		return out, err
	}
	log := p.log.With("report_id", reportID, "batch_id", report.BatchID)

	if report.Finalized() && artifact != nil {
		out.ContentHash = *report.ContentHash
		out.StorageRef = artifact.StorageRef
		out.Replayed = true
		log.Info("report already finalized; closing batch")
		return p.markSent(ctx, out)
	}

	doc, err := p.render(ctx, reportID)
	if err != nil {
		return out, err
	}
	if report.Finalized() && *report.ContentHash != doc.hash {
		return out, fmt.Errorf("report %s: %w", reportID, ErrHashMismatch)
	}
	out.ContentHash = doc.hash

	if artifact != nil {
		out.StorageRef = artifact.StorageRef
	} else {
		ref, err := p.store(ctx, reportID, doc.content)
		if err != nil {
			return out, err
		}
		out.StorageRef = ref
	}

	if !report.Finalized() {
		if err := p.backfill(ctx, reportID, doc.hash); err != nil {
			return out, err
		}
	}

	if artifact == nil {
		start := time.Now()
		_, err := p.deps.ReportAgg.RecordReportArtifact(ctx, domainagg.RecordReportArtifactInput{
			Actor:       p.deps.Actor,
			ReportID:    reportID,
			StorageRef:  out.StorageRef,
			SizeBytes:   int64(len(doc.content)),
			ContentType: "application/pdf",
		})
		p.observe("artifact", err, start)
		if err != nil {
			return out, err
		}
	}
	log.Info("report finalized", "storage_ref", out.StorageRef)
	return p.markSent(ctx, out)
}

func (p *Pipeline) render(ctx context.Context, reportID uuid.UUID) (rendered, error) {
	start := time.Now()
	doc, err := resilience.Call(ctx, p.deps.Executor, OpRender, p.renderPolicy, func(ctx context.Context) (rendered, error) {
		content, hash, err := p.deps.Renderer.Render(ctx, reportID)
		if err != nil {
			return rendered{}, err
		}
		return rendered{content: content, hash: batches.NormalizeContentHash(hash)}, nil
	})
	if err == nil {
		sum := sha256.Sum256(doc.content)
		if got := hex.EncodeToString(sum[:]); got != doc.hash {
			err = fmt.Errorf("report %s: declared=%s actual=%s: %w", reportID, doc.hash, got, ErrHashMismatch)
		}
	}
	p.observe("render", err, start)
	return doc, err
}

func (p *Pipeline) store(ctx context.Context, reportID uuid.UUID, content []byte) (string, error) {
	start := time.Now()
	ref, err := resilience.Call(ctx, p.deps.Executor, OpStore, p.storePolicy, func(ctx context.Context) (string, error) {
		return p.deps.Store.Store(ctx, reportID, content)
	})
	p.observe("store", err, start)
	return ref, err
}

// backfill writes the hash once. Losing a race to a concurrent run that wrote
// the same hash counts as success.
func (p *Pipeline) backfill(ctx context.Context, reportID uuid.UUID, hash string) error {
	start := time.Now()
	_, err := p.deps.ReportAgg.BackfillReportHash(ctx, domainagg.BackfillReportHashInput{
		Actor:       p.deps.Actor,
		ReportID:    reportID,
		ContentHash: hash,
	})
	if domainagg.IsCode(err, domainagg.CodeImmutableViolation) {
		current, getErr := p.deps.Reports.GetByID(dbctx.Context{Ctx: ctx}, reportID)
		if getErr == nil && current != nil && current.Finalized() && *current.ContentHash == hash {
			err = nil
		}
	}
	p.observe("backfill", err, start)
	return err
}

func (p *Pipeline) markSent(ctx context.Context, out Result) (Result, error) {
	start := time.Now()
	res, err := p.deps.Emission.MarkBatchSent(ctx, domainagg.MarkBatchSentInput{
		Actor:   p.deps.Actor,
		BatchID: out.BatchID,
	})
	p.observe("mark_sent", err, start)
	if err != nil {
		return out, err
	}
	out.SentAt = res.SentAt
	return out, nil
}

func (p *Pipeline) observe(stage string, err error, start time.Time) {
	if p.deps.Stages == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if code := domainagg.CodeOf(err); code != "" {
			status = string(code)
		}
	}
	p.deps.Stages.ObserveIssuanceStage(stage, status, time.Since(start))
}
