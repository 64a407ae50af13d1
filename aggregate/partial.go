package aggregate

import (
	"sort"

	qm "github.com/gofhir/measures"
)

// Partial is an intermediate cohort aggregate. The reduction is plain
// counting plus list concatenation, so partials computed by independent
// workers merge associatively and commutatively; the gap list is sorted
// only at Finalize, making the result independent of completion order.
type Partial struct {
	Eligible  int
	Excluded  int
	Compliant int
	Gaps      []qm.CareGap
	Failures  []qm.EvaluationFailure
}

// NewPartial creates an empty partial aggregate.
func NewPartial() *Partial {
	return &Partial{}
}

// Accumulate folds one qualification into the partial.
// Eligible counts denominator members before exclusions, so the
// performance base (eligible - excluded) is the post-exclusion
// denominator.
func (p *Partial) Accumulate(q *qm.MeasureQualification) {
	if q == nil {
		return
	}

	if q.Disposition.InDenominator() {
		p.Eligible++
	}
	if len(q.Exclusions) > 0 {
		p.Excluded++
	}
	if q.Qualifies {
		p.Compliant++
	}

	// Denominator-eligible, non-compliant, non-excluded patients carry a
	// care gap.
	if q.Disposition == qm.DispositionNotQualified {
		p.Gaps = append(p.Gaps, qm.CareGap{
			Patient:      q.PatientID,
			Requirements: q.Requirements.Pending,
		})
	}
}

// AddFailure records a patient whose evaluation failed unexpectedly.
// Failed patients are excluded from all aggregate counts.
func (p *Partial) AddFailure(patientID string, err error) {
	reason := "unknown failure"
	if err != nil {
		reason = err.Error()
	}
	p.Failures = append(p.Failures, qm.EvaluationFailure{
		Patient: patientID,
		Reason:  reason,
	})
}

// Merge combines another partial into this one. Merge order does not
// affect the finalized analysis.
func (p *Partial) Merge(other *Partial) {
	if other == nil {
		return
	}
	p.Eligible += other.Eligible
	p.Excluded += other.Excluded
	p.Compliant += other.Compliant
	p.Gaps = append(p.Gaps, other.Gaps...)
	p.Failures = append(p.Failures, other.Failures...)
}

// Finalize produces the analysis: gaps and failures sorted by patient id
// ascending for determinism, performance guarded against a zero base.
func (p *Partial) Finalize() *qm.MeasurePopulationAnalysis {
	gaps := make([]qm.CareGap, len(p.Gaps))
	copy(gaps, p.Gaps)
	sort.Slice(gaps, func(i, j int) bool {
		return gaps[i].Patient < gaps[j].Patient
	})

	failures := make([]qm.EvaluationFailure, len(p.Failures))
	copy(failures, p.Failures)
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Patient < failures[j].Patient
	})

	return &qm.MeasurePopulationAnalysis{
		Eligible:    p.Eligible,
		Excluded:    p.Excluded,
		Compliant:   p.Compliant,
		Performance: qm.PerformanceRate(p.Compliant, p.Eligible, p.Excluded),
		Gaps:        gaps,
		Failures:    failures,
	}
}
