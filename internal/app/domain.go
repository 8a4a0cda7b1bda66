package app

import (
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	"github.com/yungbote/batchflow-backend/internal/data/repos"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/issuance"
	"github.com/yungbote/batchflow-backend/internal/observability"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
	"github.com/yungbote/batchflow-backend/internal/services"
	"github.com/yungbote/batchflow-backend/internal/temporalx"
	"github.com/yungbote/batchflow-backend/internal/temporalx/issuewf"
)

type Aggregates struct {
	Audit      *aggregates.AuditTrail
	Authorizer domainagg.Authorizer

	Lifecycle  domainagg.BatchLifecycleAggregate
	Assessment domainagg.AssessmentAggregate
	Emission   domainagg.EmissionAggregate
	Report     domainagg.ReportAggregate
}

type Issuance struct {
	// Pipeline is nil when this process has no renderer or bucket configured.
	Pipeline *issuance.Pipeline
	Queue    domainagg.RenderQueue
	// Local is set when jobs run in-process instead of on Temporal.
	Local   *issuance.LocalQueue
	Sweeper *issuance.Sweeper
	// Executor wraps renderer and storage calls; its policy file is
	// reloaded in place when RETRY_POLICY_FILE changes.
	Executor *resilience.Executor
}

func wireDomain(
	log *logger.Logger,
	cfg Config,
	gdb *gorm.DB,
	rs repos.Set,
	metrics *observability.Metrics,
	clients Clients,
	tc temporalsdkclient.Client,
	tcfg temporalx.Config,
) (Aggregates, Issuance, error) {
	log.Info("Wiring aggregates...")
	base := aggregates.BaseDeps{
		DB:     gdb,
		Log:    log,
		Runner: aggregates.NewGormTxRunner(gdb, aggregates.WithLockTimeout(cfg.DBLockTimeout)),
		Hooks:  aggregates.NewObservabilityHooks(metrics),
	}
	trail := aggregates.NewAuditTrail(rs.Audit, log, base.Hooks)
	authorizer := services.NewScopeAuthorizer()

	aggs := Aggregates{
		Audit:      trail,
		Authorizer: authorizer,
		Lifecycle: aggregates.NewBatchLifecycleAggregate(aggregates.BatchLifecycleAggregateDeps{
			Base:                     base,
			Batches:                  rs.Batches,
			Assessments:              rs.Assessments,
			Employees:                rs.Employees,
			Audit:                    trail,
			Authorizer:               authorizer,
			Notifier:                 clients.Notifier,
			EmergencyReasonMinLength: cfg.EmergencyReasonMinLength,
		}),
		Assessment: aggregates.NewAssessmentAggregate(aggregates.AssessmentAggregateDeps{
			Base:        base,
			Batches:     rs.Batches,
			Assessments: rs.Assessments,
			Employees:   rs.Employees,
			Responses:   rs.Responses,
			Audit:       trail,
			Authorizer:  authorizer,
			Notifier:    clients.Notifier,
		}),
		Report: aggregates.NewReportAggregate(aggregates.ReportAggregateDeps{
			Base:            base,
			Reports:         rs.Reports,
			ReportArtifacts: rs.ReportArtifacts,
			Audit:           trail,
		}),
	}

	emissionDeps := aggregates.EmissionAggregateDeps{
		Base:             base,
		Batches:          rs.Batches,
		Reports:          rs.Reports,
		EmissionRequests: rs.EmissionRequests,
		ReportArtifacts:  rs.ReportArtifacts,
		Audit:            trail,
		Authorizer:       authorizer,
		Notifier:         clients.Notifier,
	}

	var iss Issuance
	if clients.Renderer != nil && clients.ReportStore != nil {
		policies, err := resilience.LoadPolicyFile(cfg.RetryPolicyFile)
		if err != nil {
			return aggs, iss, err
		}
		exec := resilience.New(
			resilience.WithLogger(log),
			resilience.WithRecorder(metrics),
			resilience.WithPolicyFile(policies),
		)
		// The pipeline only marks batches sent, so its emission aggregate
		// needs no queue.
		p, err := issuance.New(issuance.Deps{
			Log:       log,
			Reports:   rs.Reports,
			Artifacts: rs.ReportArtifacts,
			Renderer:  clients.Renderer,
			Store:     clients.ReportStore,
			ReportAgg: aggs.Report,
			Emission:  aggregates.NewEmissionAggregate(emissionDeps),
			Executor:  exec,
			Stages:    metrics,
		})
		if err != nil {
			return aggs, iss, fmt.Errorf("init issuance pipeline: %w", err)
		}
		iss.Pipeline = p
		iss.Executor = exec
	}

	switch {
	case tc != nil:
		q, err := issuewf.NewQueue(log, tc, tcfg.TaskQueue)
		if err != nil {
			return aggs, iss, err
		}
		iss.Queue = q
	case iss.Pipeline != nil:
		iss.Local = issuance.NewLocalQueue(log, iss.Pipeline, cfg.WorkerConcurrency, cfg.RenderQueueBuffer)
		iss.Queue = iss.Local
	default:
		log.Warn("No render queue available; issued reports wait for a worker sweep")
	}

	if iss.Queue != nil {
		emissionDeps.Queue = iss.Queue
		iss.Sweeper = issuance.NewSweeper(log, rs.Batches, rs.Reports, iss.Queue)
	}
	aggs.Emission = aggregates.NewEmissionAggregate(emissionDeps)
	return aggs, iss, nil
}
