package worker

import qm "github.com/gofhir/measures"

// JobResult is the outcome of evaluating one patient snapshot.
type JobResult struct {
	// PatientID identifies the evaluated snapshot.
	PatientID string

	// Qualification is the evaluation outcome, nil when Err is set.
	Qualification *qm.MeasureQualification

	// Err is set when the evaluation failed unexpectedly (recovered panic).
	Err error

	// Duration is the evaluation time in nanoseconds.
	Duration int64
}

// BatchResult aggregates results from one cohort run.
type BatchResult struct {
	// Results holds one entry per submitted patient, in submission order.
	// Entries are nil for patients not reached before cancellation.
	Results []*JobResult

	// TotalJobs is the number of patients submitted.
	TotalJobs int

	// CompletedJobs is the number of evaluations finished (including
	// failures).
	CompletedJobs int

	// FailedJobs is the number of evaluations that failed unexpectedly.
	FailedJobs int

	// Cancelled is true when the run was interrupted by context
	// cancellation before every patient was evaluated.
	Cancelled bool
}

// HasFailures returns true if any evaluation failed unexpectedly.
func (br *BatchResult) HasFailures() bool {
	return br.FailedJobs > 0
}
