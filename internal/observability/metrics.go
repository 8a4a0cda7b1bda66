package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	auditFailures      *CounterVec

	resilienceCalls    *CounterVec
	resilienceAttempts *HistogramVec
	resilienceLatency  *HistogramVec
	breakerState       *GaugeVec

	issuanceStages  *HistogramVec
	notifications   *CounterVec
	batchesByStatus *GaugeVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	all []promWriter
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init returns the process-wide metrics, or nil when METRICS_ENABLED is off.
// Every method tolerates a nil receiver.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	m := &Metrics{
		apiRequests: NewCounterVec("bf_api_requests_total", "API requests by method, route, status and aggregate error code.", []string{"method", "route", "status", "code"}),
		apiLatency:  NewHistogramVec("bf_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("bf_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("bf_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("bf_api_requests_error_total", "Total API requests with 5xx status."),

		aggregateOps:       NewCounterVec("bf_aggregate_operations_total", "Aggregate write operations by op/status.", []string{"op", "status"}),
		aggregateLatency:   NewHistogramVec("bf_aggregate_operation_duration_seconds", "Aggregate write latency in seconds by op/status.", []string{"op", "status"}, latency),
		aggregateConflicts: NewCounterVec("bf_aggregate_conflicts_total", "Aggregate writes rejected by a concurrent or duplicate write.", []string{"op", "code"}),
		aggregateRetries:   NewCounterVec("bf_aggregate_retryable_total", "Aggregate writes failed with a retryable error.", []string{"op"}),
		auditFailures:      NewCounterVec("bf_audit_write_failures_total", "Audit entries that could not be written, by action.", []string{"action"}),

		resilienceCalls:    NewCounterVec("bf_resilience_executions_total", "Guarded external calls by op/outcome.", []string{"op", "outcome"}),
		resilienceAttempts: NewHistogramVec("bf_resilience_attempts", "Attempts per guarded call by op.", []string{"op"}, []float64{1, 2, 3, 5, 10}),
		resilienceLatency:  NewHistogramVec("bf_resilience_duration_seconds", "Guarded call duration including waits, by op/outcome.", []string{"op", "outcome"}, []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}),
		breakerState:       NewGaugeVec("bf_circuit_breaker_state", "Circuit breaker state by op (0 closed, 1 half-open, 2 open).", []string{"op"}),

		issuanceStages:  NewHistogramVec("bf_issuance_stage_duration_seconds", "Report issuance stage duration by stage/status.", []string{"stage", "status"}, []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300}),
		notifications:   NewCounterVec("bf_notifications_total", "Published notifications by event/status.", []string{"event", "status"}),
		batchesByStatus: NewGaugeVec("bf_batches", "Batches by status.", []string{"status"}),

		pgStats:   NewGaugeVec("bf_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("bf_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("bf_redis_ping_seconds", "Redis ping latency in seconds."),
	}
	m.all = []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries, m.auditFailures,
		m.resilienceCalls, m.resilienceAttempts, m.resilienceLatency, m.breakerState,
		m.issuanceStages, m.notifications, m.batchesByStatus,
		m.pgStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status, code string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	if code == "" {
		code = "none"
	}
	m.apiRequests.Inc(method, route, status, code)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = orUnknown(op)
	status = orUnknown(status)
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op, code string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(orUnknown(op), orUnknown(code))
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(orUnknown(op))
}

func (m *Metrics) IncAuditWriteFailure(action string) {
	if m == nil {
		return
	}
	m.auditFailures.Inc(orUnknown(action))
}

// RecordExecution implements resilience.Recorder.
func (m *Metrics) RecordExecution(e resilience.Execution) {
	if m == nil {
		return
	}
	op := orUnknown(e.Op)
	outcome := orUnknown(string(e.Outcome))
	m.resilienceCalls.Inc(op, outcome)
	m.resilienceAttempts.Observe(float64(e.Attempts), op)
	m.resilienceLatency.Observe(e.Elapsed.Seconds(), op, outcome)
}

// SetBreakerState implements resilience.Recorder.
func (m *Metrics) SetBreakerState(op string, state resilience.BreakerState) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case resilience.StateHalfOpen:
		v = 1
	case resilience.StateOpen:
		v = 2
	}
	m.breakerState.Set(v, orUnknown(op))
}

var _ resilience.Recorder = (*Metrics)(nil)

func (m *Metrics) ObserveIssuanceStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.issuanceStages.Observe(dur.Seconds(), orUnknown(stage), orUnknown(status))
}

func (m *Metrics) IncNotification(event, status string) {
	if m == nil {
		return
	}
	m.notifications.Inc(orUnknown(event), orUnknown(status))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

// StartRedisCollector pings the shared client; it does not own or close it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartBatchStatusCollector publishes how many batches sit in each status.
func (m *Metrics) StartBatchStatusCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []batches.BatchStatus{
		batches.BatchActive, batches.BatchConcluded, batches.BatchCancelled,
		batches.BatchReportRequested, batches.BatchIssued, batches.BatchSent,
	}
	m.every(ctx, func() {
		var rows []struct {
			Status string
			Count  int64
		}
		if err := db.WithContext(ctx).
			Model(&batches.Batch{}).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error; err != nil {
			if log != nil {
				log.Warn("metrics: batch status query failed", "error", err)
			}
			return
		}
		for _, s := range statuses {
			m.batchesByStatus.Set(0, s.String())
		}
		for _, row := range rows {
			m.batchesByStatus.Set(float64(row.Count), orUnknown(row.Status))
		}
	})
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}
