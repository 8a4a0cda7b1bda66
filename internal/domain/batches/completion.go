package batches

// AssessmentCounts is the per-batch tally recomputation works from.
type AssessmentCounts struct {
	Total       int
	Completed   int
	Inactivated int
}

// Active returns the number of assessments that count toward completion.
func (c AssessmentCounts) Active() int {
	return c.Total - c.Inactivated
}

// DerivedStatus applies the completion rule. Inactivated assessments are out
// of both numerator and denominator; a batch with nothing left to answer is
// cancelled when it ever had assessments and active otherwise.
func DerivedStatus(c AssessmentCounts) BatchStatus {
	active := c.Active()
	switch {
	case active > 0 && c.Completed == active:
		return BatchConcluded
	case active <= 0 && c.Total > 0:
		return BatchCancelled
	default:
		return BatchActive
	}
}

// NextBatchStatus returns the status recomputation should store. Once the
// batch entered the emission path, assessment-side changes never move it.
func NextBatchStatus(current BatchStatus, c AssessmentCounts) BatchStatus {
	if current.PastConcluded() {
		return current
	}
	return DerivedStatus(c)
}
