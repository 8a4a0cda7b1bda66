package testutil

import (
	"sync"
	"testing"
	"time"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
)

func TestHooksRecorderFiltersByOp(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("emission.request", "success", 5*time.Millisecond)
	h.ObserveOperation("emission.request", string(domainagg.CodeAlreadyRequested), time.Millisecond)
	h.ObserveOperation("batch.recompute", "success", time.Millisecond)
	h.IncConflict("emission.request", domainagg.CodeAlreadyRequested)
	h.IncRetry("batch.recompute")

	if got := h.Outcomes("emission.request"); len(got) != 2 || got[1] != string(domainagg.CodeAlreadyRequested) {
		t.Fatalf("outcomes: got=%v", got)
	}
	if got := h.ConflictsFor("emission.request"); got != 1 {
		t.Fatalf("conflicts: want=1 got=%d", got)
	}
	if got := h.ConflictsFor("batch.recompute"); got != 0 {
		t.Fatalf("conflicts for recompute: want=0 got=%d", got)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "batch.recompute" {
		t.Fatalf("retries: got=%v", h.Retries)
	}
}

func TestHooksRecorderConcurrentWriters(t *testing.T) {
	h := &HooksRecorder{}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.IncConflict("emission.request", domainagg.CodeAlreadyIssued)
		}()
	}
	wg.Wait()
	if got := h.ConflictsFor("emission.request"); got != 16 {
		t.Fatalf("conflicts: want=16 got=%d", got)
	}
}
