package issuewf

import "github.com/google/uuid"

const (
	WorkflowName = "issue_report"
	ActivityRun  = "issue_report_run"

	// Error types that Temporal must not retry.
	ErrTypeNonRetryable = "IssuanceNonRetryable"
)

type Input struct {
	ReportID uuid.UUID `json:"report_id"`
	BatchID  uuid.UUID `json:"batch_id"`
}

type Output struct {
	ReportID    uuid.UUID `json:"report_id"`
	ContentHash string    `json:"content_hash"`
	StorageRef  string    `json:"storage_ref"`
	Replayed    bool      `json:"replayed"`
}

// WorkflowID is stable per report so a second start for the same report is
// rejected by the server.
func WorkflowID(reportID uuid.UUID) string {
	return "report-issue-" + reportID.String()
}
