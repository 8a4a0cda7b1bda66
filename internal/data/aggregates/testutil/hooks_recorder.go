package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/batchflow-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
)

// HooksRecorder keeps every hook call so tests can assert on outcomes.
type HooksRecorder struct {
	mu sync.Mutex

	Operations    []OperationEvent
	Conflicts     []ConflictEvent
	Retries       []string
	AuditFailures []string
}

type OperationEvent struct {
	Op       string
	Outcome  string
	Duration time.Duration
}

type ConflictEvent struct {
	Op   string
	Code domainagg.ErrorCode
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(op, outcome string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Op: op, Outcome: outcome, Duration: dur})
}

func (h *HooksRecorder) IncConflict(op string, code domainagg.ErrorCode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, ConflictEvent{Op: op, Code: code})
}

func (h *HooksRecorder) IncRetry(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, op)
}

func (h *HooksRecorder) IncAuditFailure(action string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AuditFailures = append(h.AuditFailures, action)
}

// ConflictsFor counts recorded conflicts for op.
func (h *HooksRecorder) ConflictsFor(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.Conflicts {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Outcomes returns the outcome of every finished op, in order.
func (h *HooksRecorder) Outcomes(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, e := range h.Operations {
		if e.Op == op {
			out = append(out, e.Outcome)
		}
	}
	return out
}
