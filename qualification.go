package measures

import "time"

// Population identifies the last population stage a patient satisfied.
type Population string

// Population stages.
const (
	PopulationInitial     Population = "initial"
	PopulationDenominator Population = "denominator"
	PopulationNumerator   Population = "numerator"
)

// Disposition is the exhaustive terminal state of a per-patient evaluation.
type Disposition string

// Terminal dispositions.
const (
	// DispositionQualified: the patient satisfied the numerator.
	DispositionQualified Disposition = "qualified"
	// DispositionNotQualified: denominator-eligible, numerator not met.
	DispositionNotQualified Disposition = "not-qualified"
	// DispositionExcluded: a denominator exclusion matched.
	DispositionExcluded Disposition = "excluded-at-denominator"
	// DispositionNotInDenominator: in the initial population, denominator
	// criteria not met.
	DispositionNotInDenominator Disposition = "not-in-denominator"
	// DispositionNotInInitialPopulation: initial-population criteria not met.
	DispositionNotInInitialPopulation Disposition = "not-in-initial-population"
)

// IsValid returns true if this is a known terminal disposition.
func (d Disposition) IsValid() bool {
	switch d {
	case DispositionQualified, DispositionNotQualified, DispositionExcluded,
		DispositionNotInDenominator, DispositionNotInInitialPopulation:
		return true
	default:
		return false
	}
}

// InDenominator returns true for dispositions that reached the denominator
// stage, before exclusions are applied.
func (d Disposition) InDenominator() bool {
	switch d {
	case DispositionQualified, DispositionNotQualified, DispositionExcluded:
		return true
	default:
		return false
	}
}

// InInitialPopulation returns true for dispositions that passed the
// initial-population stage.
func (d Disposition) InInitialPopulation() bool {
	return d != DispositionNotInInitialPopulation && d.IsValid()
}

// Requirements lists the numerator items a patient has met and those still
// pending. Pending requirements are the patient's care gap.
type Requirements struct {
	Met     []string `json:"met"`
	Pending []string `json:"pending"`
}

// MeasureQualification is the outcome of evaluating one measure against one
// patient snapshot. It is always well-formed: evaluation failures degrade
// the affected clause and surface as Issues rather than aborting.
type MeasureQualification struct {
	// PatientID identifies the evaluated snapshot.
	PatientID string `json:"patientId"`

	// MeasureID identifies the evaluated measure.
	MeasureID string `json:"measureId"`

	// Qualifies is true only when the patient reached the numerator and no
	// exclusion matched.
	Qualifies bool `json:"qualifies"`

	// Population is the last stage the patient satisfied.
	Population Population `json:"population"`

	// Disposition is the terminal state of the evaluation state machine.
	Disposition Disposition `json:"disposition"`

	// Exclusions lists matched denominator-exclusion reasons.
	Exclusions []string `json:"exclusions"`

	// Requirements lists met and pending numerator items.
	Requirements Requirements `json:"requirements"`

	// DueDate is the deadline for closing the care gap, set only when the
	// patient is denominator-eligible and the numerator was not met.
	DueDate *time.Time `json:"dueDate,omitempty"`

	// Issues documents degraded clauses (missing data, unknown value sets).
	Issues []Issue `json:"issues,omitempty"`
}

// AddIssue appends an evaluation issue.
func (q *MeasureQualification) AddIssue(issue Issue) {
	q.Issues = append(q.Issues, issue)
}

// AddIssues appends multiple evaluation issues.
func (q *MeasureQualification) AddIssues(issues []Issue) {
	if len(issues) == 0 {
		return
	}
	q.Issues = append(q.Issues, issues...)
}

// HasWarnings returns true if any issue is a warning.
func (q *MeasureQualification) HasWarnings() bool {
	for _, issue := range q.Issues {
		if issue.IsWarning() {
			return true
		}
	}
	return false
}
