package aggregates

import (
	"strings"
	"time"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/observability"
)

// Hooks receives one call per finished unit of work plus counters for the
// outcomes operators watch: lost races, retryable failures and audit gaps.
type Hooks interface {
	ObserveOperation(op, outcome string, dur time.Duration)
	IncConflict(op string, code domainagg.ErrorCode)
	IncRetry(op string)
	IncAuditFailure(action string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string, domainagg.ErrorCode)        {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) IncAuditFailure(string)                         {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks feeds aggregate outcomes into metrics. A nil
// registry yields hooks that drop everything.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) ObserveOperation(op, outcome string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(op), strings.TrimSpace(outcome), dur)
}

func (h metricsHooks) IncConflict(op string, code domainagg.ErrorCode) {
	h.metrics.IncAggregateConflict(strings.TrimSpace(op), string(code))
}

func (h metricsHooks) IncRetry(op string) {
	h.metrics.IncAggregateRetry(strings.TrimSpace(op))
}

func (h metricsHooks) IncAuditFailure(action string) {
	h.metrics.IncAuditWriteFailure(strings.TrimSpace(action))
}

// lostRace reports codes produced when another writer got there first.
func lostRace(code domainagg.ErrorCode) bool {
	switch code {
	case domainagg.CodeConflict, domainagg.CodeAlreadyRequested, domainagg.CodeAlreadyIssued:
		return true
	default:
		return false
	}
}
