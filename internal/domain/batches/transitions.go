package batches

// CanTransitionAssessment reports whether from -> to is a legal assessment move.
func CanTransitionAssessment(from, to AssessmentStatus) bool {
	switch from {
	case AssessmentStarted:
		return to == AssessmentInProgress || to == AssessmentCompleted || to == AssessmentInactivated
	case AssessmentInProgress:
		return to == AssessmentCompleted || to == AssessmentInactivated
	default:
		return false
	}
}

// CanAdvanceEmission reports whether the emission path may move from -> to.
// Derived states are never targets here; they belong to recomputation.
func CanAdvanceEmission(from, to BatchStatus) bool {
	switch to {
	case BatchReportRequested:
		return from == BatchConcluded || from == BatchActive
	case BatchIssued:
		return from == BatchReportRequested
	case BatchSent:
		return from == BatchIssued
	default:
		return false
	}
}
