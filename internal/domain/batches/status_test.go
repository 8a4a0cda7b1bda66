package batches

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseBatchStatusRejectsLegacyDraft(t *testing.T) {
	for _, raw := range []string{"draft", "Rascunho", " DRAFT "} {
		_, err := ParseBatchStatus(raw)
		if !errors.Is(err, ErrLegacyStatus) {
			t.Fatalf("ParseBatchStatus(%q): want ErrLegacyStatus got=%v", raw, err)
		}
	}
}

func TestParseAssessmentStatusRejectsLegacyCompleted(t *testing.T) {
	for _, raw := range []string{"complete", "concluida", "concluido"} {
		_, err := ParseAssessmentStatus(raw)
		if !errors.Is(err, ErrLegacyStatus) {
			t.Fatalf("ParseAssessmentStatus(%q): want ErrLegacyStatus got=%v", raw, err)
		}
	}
	got, err := ParseAssessmentStatus("completed")
	if err != nil || got != AssessmentCompleted {
		t.Fatalf("canonical spelling: want=%v got=%v err=%v", AssessmentCompleted, got, err)
	}
}

func TestParseStatusUnknown(t *testing.T) {
	if _, err := ParseBatchStatus("archived"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("batch: want ErrUnknownStatus got=%v", err)
	}
	if _, err := ParseReportStatus("sent"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("report: want ErrUnknownStatus got=%v", err)
	}
}

func TestBatchStatusScanRejectsLegacyRow(t *testing.T) {
	var s BatchStatus
	if err := s.Scan([]byte("draft")); !errors.Is(err, ErrLegacyStatus) {
		t.Fatalf("scan legacy: want ErrLegacyStatus got=%v", err)
	}
	if !s.IsZero() {
		t.Fatalf("status must stay zero after a rejected scan, got=%v", s)
	}
}

func TestZeroStatusCannotBePersisted(t *testing.T) {
	if _, err := (BatchStatus{}).Value(); !errors.Is(err, ErrUnsetStatus) {
		t.Fatalf("batch zero Value: want ErrUnsetStatus got=%v", err)
	}
	if _, err := (ReportStatus{}).Value(); !errors.Is(err, ErrUnsetStatus) {
		t.Fatalf("report zero Value: want ErrUnsetStatus got=%v", err)
	}
	v, err := (AssessmentStatus{}).Value()
	if err != nil || v != nil {
		t.Fatalf("assessment zero Value: want NULL got=%v err=%v", v, err)
	}
}

func TestStatusJSONRoundTripsThroughParse(t *testing.T) {
	var payload struct {
		Status BatchStatus `json:"status"`
	}
	if err := json.Unmarshal([]byte(`{"status":"report_requested"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Status != BatchReportRequested {
		t.Fatalf("status: want=%v got=%v", BatchReportRequested, payload.Status)
	}
	if err := json.Unmarshal([]byte(`{"status":"draft"}`), &payload); err == nil {
		t.Fatalf("expected legacy draft to fail unmarshal")
	}
}

func TestCanTransitionAssessment(t *testing.T) {
	cases := []struct {
		from, to AssessmentStatus
		want     bool
	}{
		{AssessmentStarted, AssessmentInProgress, true},
		{AssessmentStarted, AssessmentCompleted, true},
		{AssessmentStarted, AssessmentInactivated, true},
		{AssessmentInProgress, AssessmentCompleted, true},
		{AssessmentInProgress, AssessmentInactivated, true},
		{AssessmentInProgress, AssessmentStarted, false},
		{AssessmentCompleted, AssessmentInactivated, false},
		{AssessmentInactivated, AssessmentInProgress, false},
		{AssessmentCompleted, AssessmentCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransitionAssessment(tc.from, tc.to); got != tc.want {
			t.Fatalf("%v -> %v: want=%v got=%v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestCanAdvanceEmission(t *testing.T) {
	if !CanAdvanceEmission(BatchConcluded, BatchReportRequested) {
		t.Fatalf("concluded -> report_requested must be allowed")
	}
	if !CanAdvanceEmission(BatchReportRequested, BatchIssued) || !CanAdvanceEmission(BatchIssued, BatchSent) {
		t.Fatalf("forward emission path must be allowed")
	}
	if CanAdvanceEmission(BatchIssued, BatchConcluded) {
		t.Fatalf("emission path must never target a derived status")
	}
	if CanAdvanceEmission(BatchCancelled, BatchReportRequested) {
		t.Fatalf("cancelled batches cannot request emission")
	}
}
