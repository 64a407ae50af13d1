package measures

// IssueSeverity represents the severity of an evaluation issue.
type IssueSeverity string

const (
	// SeverityError indicates the evaluation could not produce a usable
	// result for the affected patient.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates degraded evaluation: a clause was treated
	// as a non-match because of missing or unresolvable inputs.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInformation indicates informational feedback.
	SeverityInformation IssueSeverity = "information"
)

// IssueType represents the type of evaluation issue.
type IssueType string

const (
	// IssueTypeData indicates a malformed or missing field on a patient
	// snapshot, recovered locally as a non-match.
	IssueTypeData IssueType = "data"
	// IssueTypeValueSet indicates a value-set reference that could not be
	// resolved to a loaded value set.
	IssueTypeValueSet IssueType = "value-set"
	// IssueTypeExpression indicates an expression clause that failed to
	// evaluate.
	IssueTypeExpression IssueType = "expression"
	// IssueTypeProcessing indicates an unexpected failure while evaluating
	// one patient.
	IssueTypeProcessing IssueType = "processing"
	// IssueTypeCancelled indicates the run was cancelled before completion.
	IssueTypeCancelled IssueType = "cancelled"
)

// Issue records a single evaluation problem. Issues never abort an
// evaluation; they document why a clause degraded to a non-match.
type Issue struct {
	// Severity of the issue
	Severity IssueSeverity `json:"severity"`

	// Code identifying the type of issue
	Code IssueType `json:"code"`

	// Diagnostics contains human-readable details
	Diagnostics string `json:"diagnostics,omitempty"`

	// Stage is the evaluation stage that generated this issue
	Stage string `json:"stage,omitempty"`
}

// IsError returns true if this is an error issue.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}

// IsWarning returns true if this is a warning.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	s := string(i.Severity) + ": " + i.Diagnostics
	if i.Stage != "" {
		s += " (stage " + i.Stage + ")"
	}
	return s
}

// DataWarning builds a warning issue for degraded patient data.
func DataWarning(stage, diagnostics string) Issue {
	return Issue{
		Severity:    SeverityWarning,
		Code:        IssueTypeData,
		Diagnostics: diagnostics,
		Stage:       stage,
	}
}

// ValueSetWarning builds a warning issue for an unresolvable value-set
// reference.
func ValueSetWarning(stage, oid string) Issue {
	return Issue{
		Severity:    SeverityWarning,
		Code:        IssueTypeValueSet,
		Diagnostics: "value set " + oid + " is not registered; treating as non-match",
		Stage:       stage,
	}
}
