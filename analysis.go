package measures

import "math"

// CareGap pairs a denominator-eligible, non-compliant patient with the
// unmet requirements blocking compliance.
type CareGap struct {
	Patient      string   `json:"patient"`
	Requirements []string `json:"requirements"`
}

// TrendPoint is one period→performance pair in a longitudinal series.
type TrendPoint struct {
	Period      string  `json:"period"`
	Performance float64 `json:"performance"`
}

// EvaluationFailure reports a patient whose evaluation failed unexpectedly.
// Failed patients are excluded from aggregate counts; the rest of the
// cohort continues uninterrupted.
type EvaluationFailure struct {
	Patient string `json:"patient"`
	Reason  string `json:"reason"`
}

// MeasurePopulationAnalysis is the cohort-level aggregate for one measure.
type MeasurePopulationAnalysis struct {
	// RunID correlates this analysis with log output.
	RunID string `json:"runId,omitempty"`

	// MeasureID identifies the aggregated measure.
	MeasureID string `json:"measureId"`

	// Period is the measurement period key the cohort was evaluated for.
	Period string `json:"period"`

	// Eligible counts denominator members before exclusions.
	Eligible int `json:"eligible"`

	// Excluded counts patients with a matched denominator exclusion.
	Excluded int `json:"excluded"`

	// Compliant counts patients that qualified for the numerator.
	Compliant int `json:"compliant"`

	// Performance is compliant/(eligible-excluded) as a percentage rounded
	// to one decimal, 0 when the denominator base is 0.
	Performance float64 `json:"performance"`

	// Gaps lists care gaps sorted by patient id ascending.
	Gaps []CareGap `json:"gaps"`

	// Failures lists patients whose evaluation failed unexpectedly.
	Failures []EvaluationFailure `json:"failures,omitempty"`

	// Trends is the longitudinal series, populated by the TrendTracker.
	Trends []TrendPoint `json:"trends,omitempty"`
}

// PerformanceRate computes the performance percentage for the given counts,
// rounded to one decimal place. Defined as 0 when the denominator base
// (eligible - excluded) is not positive.
func PerformanceRate(compliant, eligible, excluded int) float64 {
	base := eligible - excluded
	if base <= 0 {
		return 0
	}
	return math.Round(float64(compliant)/float64(base)*1000) / 10
}

// DenominatorBase returns the size of the performance denominator.
func (a *MeasurePopulationAnalysis) DenominatorBase() int {
	return a.Eligible - a.Excluded
}
