package batches

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status values are closed: the only way to obtain a non-zero value is one of
// the package-level variables or a successful Parse. The zero value is never a
// legal state and cannot be persisted.

type BatchStatus struct{ v string }

var (
	BatchActive          = BatchStatus{"active"}
	BatchConcluded       = BatchStatus{"concluded"}
	BatchCancelled       = BatchStatus{"cancelled"}
	BatchReportRequested = BatchStatus{"report_requested"}
	BatchIssued          = BatchStatus{"issued"}
	BatchSent            = BatchStatus{"sent"}
)

var batchStatuses = []BatchStatus{BatchActive, BatchConcluded, BatchCancelled, BatchReportRequested, BatchIssued, BatchSent}

var legacyBatchSpellings = map[string]struct{}{
	"draft":    {},
	"rascunho": {},
}

func ParseBatchStatus(raw string) (BatchStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := legacyBatchSpellings[s]; ok {
		return BatchStatus{}, fmt.Errorf("batch status %q: %w", raw, ErrLegacyStatus)
	}
	for _, st := range batchStatuses {
		if st.v == s {
			return st, nil
		}
	}
	return BatchStatus{}, fmt.Errorf("batch status %q: %w", raw, ErrUnknownStatus)
}

func (s BatchStatus) String() string { return s.v }
func (s BatchStatus) IsZero() bool   { return s.v == "" }

// Derived reports whether the status is computed from assessments rather than
// driven by the emission path.
func (s BatchStatus) Derived() bool {
	return s == BatchActive || s == BatchConcluded || s == BatchCancelled
}

// PastConcluded reports whether the batch entered the emission path.
func (s BatchStatus) PastConcluded() bool {
	return s == BatchReportRequested || s == BatchIssued || s == BatchSent
}

func (s BatchStatus) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("batch status: %w", ErrUnsetStatus)
	}
	return s.v, nil
}

func (s *BatchStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseBatchStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s BatchStatus) MarshalText() ([]byte, error) { return []byte(s.v), nil }

func (s *BatchStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseBatchStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type AssessmentStatus struct{ v string }

var (
	AssessmentStarted     = AssessmentStatus{"started"}
	AssessmentInProgress  = AssessmentStatus{"in_progress"}
	AssessmentCompleted   = AssessmentStatus{"completed"}
	AssessmentInactivated = AssessmentStatus{"inactivated"}
)

var assessmentStatuses = []AssessmentStatus{AssessmentStarted, AssessmentInProgress, AssessmentCompleted, AssessmentInactivated}

var legacyAssessmentSpellings = map[string]struct{}{
	"complete":  {},
	"concluida": {},
	"concluido": {},
	"iniciada":  {},
	"inativada": {},
}

func ParseAssessmentStatus(raw string) (AssessmentStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := legacyAssessmentSpellings[s]; ok {
		return AssessmentStatus{}, fmt.Errorf("assessment status %q: %w", raw, ErrLegacyStatus)
	}
	for _, st := range assessmentStatuses {
		if st.v == s {
			return st, nil
		}
	}
	return AssessmentStatus{}, fmt.Errorf("assessment status %q: %w", raw, ErrUnknownStatus)
}

func (s AssessmentStatus) String() string { return s.v }
func (s AssessmentStatus) IsZero() bool   { return s.v == "" }

// Terminal reports whether no further transition is legal.
func (s AssessmentStatus) Terminal() bool {
	return s == AssessmentCompleted || s == AssessmentInactivated
}

// Value maps the zero status to NULL so optional columns (the employee
// snapshot) can hold "no assessment yet".
func (s AssessmentStatus) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return s.v, nil
}

func (s *AssessmentStatus) Scan(src any) error {
	if src == nil {
		*s = AssessmentStatus{}
		return nil
	}
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseAssessmentStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s AssessmentStatus) MarshalText() ([]byte, error) { return []byte(s.v), nil }

func (s *AssessmentStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseAssessmentStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type ReportStatus struct{ v string }

var (
	ReportDraft  = ReportStatus{"draft"}
	ReportIssued = ReportStatus{"issued"}
)

func ParseReportStatus(raw string) (ReportStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ReportDraft.v:
		return ReportDraft, nil
	case ReportIssued.v:
		return ReportIssued, nil
	case "rascunho", "emitido":
		return ReportStatus{}, fmt.Errorf("report status %q: %w", raw, ErrLegacyStatus)
	default:
		return ReportStatus{}, fmt.Errorf("report status %q: %w", raw, ErrUnknownStatus)
	}
}

func (s ReportStatus) String() string { return s.v }
func (s ReportStatus) IsZero() bool   { return s.v == "" }

func (s ReportStatus) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("report status: %w", ErrUnsetStatus)
	}
	return s.v, nil
}

func (s *ReportStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseReportStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ReportStatus) MarshalText() ([]byte, error) { return []byte(s.v), nil }

func (s *ReportStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseReportStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("status: %w", ErrUnsetStatus)
	default:
		return "", fmt.Errorf("status: unsupported scan type %T", src)
	}
}
