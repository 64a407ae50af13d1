package measures

// ValueSetConcept is a single (system, code) pair within a value set.
type ValueSetConcept struct {
	// Code within the code system
	Code string `json:"code"`

	// System is the code system URI (e.g., http://snomed.info/sct)
	System string `json:"system"`

	// Display is the human-readable label for the concept
	Display string `json:"display,omitempty"`
}

// ValueSet is a named collection of clinical concepts identified by an OID.
// Measure criteria reference value sets by OID rather than listing codes
// inline.
type ValueSet struct {
	ID       string            `json:"id"`
	OID      string            `json:"oid"`
	Name     string            `json:"name"`
	Concepts []ValueSetConcept `json:"concepts"`
}

// Comparator is a numeric comparison operator used by numerator result
// criteria.
type Comparator string

// Supported comparators.
const (
	CompareGreater      Comparator = ">"
	CompareLess         Comparator = "<"
	CompareGreaterEqual Comparator = ">="
	CompareLessEqual    Comparator = "<="
	CompareEqual        Comparator = "="
)

// IsValid returns true if this is a supported comparator.
func (c Comparator) IsValid() bool {
	switch c {
	case CompareGreater, CompareLess, CompareGreaterEqual, CompareLessEqual, CompareEqual:
		return true
	default:
		return false
	}
}

// TimeframeType determines how a lookback window is anchored.
type TimeframeType string

const (
	// TimeframeRolling looks back a fixed number of days from the
	// measurement-period end date, inclusive on both ends.
	TimeframeRolling TimeframeType = "rolling"

	// TimeframeAnnual restricts events to the same calendar year as the
	// measurement-period end date.
	TimeframeAnnual TimeframeType = "annual"
)

// Timeframe bounds the events considered by the initial-population criteria.
type Timeframe struct {
	Type     TimeframeType `json:"type"`
	Lookback int           `json:"lookback"` // days, rolling only
}

// Demographics bounds the initial population by age and gender.
// Absent bounds always pass; present bounds are inclusive on both ends.
type Demographics struct {
	AgeMin *int     `json:"age_min,omitempty"`
	AgeMax *int     `json:"age_max,omitempty"`
	Gender []string `json:"gender,omitempty"`
}

// InitialPopulationCriteria defines the broadest candidate set for a measure.
// All present sub-clauses are conjunctive.
type InitialPopulationCriteria struct {
	Demographics *Demographics `json:"demographics,omitempty"`
	Conditions   []string      `json:"conditions,omitempty"`
	Encounters   []string      `json:"encounters,omitempty"`
	Medications  []string      `json:"medications,omitempty"`
	Timeframe    *Timeframe    `json:"timeframe,omitempty"`
}

// DenominatorCriteria narrows the initial population before exclusions.
// Categories with entries must match (OR within a category's value-set
// list); present categories are ANDed together; an absent category is
// vacuously satisfied.
type DenominatorCriteria struct {
	Conditions   []string `json:"conditions,omitempty"`
	Procedures   []string `json:"procedures,omitempty"`
	Observations []string `json:"observations,omitempty"`
}

// ExclusionCriteria removes otherwise denominator-eligible patients.
// A match forces Qualifies=false regardless of the numerator outcome.
type ExclusionCriteria struct {
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`

	// Timeframe is the exclusion lookback in days, measured inclusively
	// backward from the measurement-period end date.
	Timeframe int `json:"timeframe"`
}

// ResultSpec requires the most recent in-window observation of the named
// type to satisfy a numeric comparison.
type ResultSpec struct {
	Type       string     `json:"type"`
	Value      string     `json:"value"`
	Comparator Comparator `json:"comparator"`
}

// Window defines the numerator lookback/lookahead in days, anchored at the
// measurement-period end date.
type Window struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// NumeratorCriteria defines the required outcome or process for a measure.
// Coded references and result specs are all conjunctive.
type NumeratorCriteria struct {
	Tests      []string     `json:"tests,omitempty"`
	Procedures []string     `json:"procedures,omitempty"`
	Results    []ResultSpec `json:"results,omitempty"`

	// Expression is an optional FHIRPath expression evaluated against the
	// patient's raw FHIR resource. Compile failures are configuration
	// errors; evaluation failures are non-matches.
	Expression string `json:"expression,omitempty"`

	Timeframe Window `json:"timeframe"`
}

// MeasureCriteria is the complete declarative eligibility specification for
// a quality measure. It is validated once at engine construction and is
// immutable for the life of the engine.
type MeasureCriteria struct {
	InitialPopulation     InitialPopulationCriteria `json:"initial_population"`
	Denominator           *DenominatorCriteria      `json:"denominator,omitempty"`
	DenominatorExclusions *ExclusionCriteria        `json:"denominator_exclusions,omitempty"`
	Numerator             NumeratorCriteria         `json:"numerator"`
}

// PerformanceTargets holds optional target and benchmark rates for a measure.
type PerformanceTargets struct {
	Target      *float64 `json:"target,omitempty"`
	Benchmark   *float64 `json:"benchmark,omitempty"`
	Improvement *float64 `json:"improvement,omitempty"`
}

// Implementation identifies the authoritative program a measure belongs to.
type Implementation struct {
	Category      MeasureCategory `json:"category"`
	Code          string          `json:"code"`
	Version       string          `json:"version"`
	Status        MeasureStatus   `json:"status"`
	EffectiveDate string          `json:"effective_date,omitempty"`
}

// QualityMeasure is a complete measure definition: identity, classification
// tags, the criteria block, its referenced value sets and optional
// performance targets.
type QualityMeasure struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Implementation Implementation      `json:"implementation"`
	Steward        string              `json:"steward,omitempty"`
	Domain         MeasureDomain       `json:"domain"`
	Type           MeasureType         `json:"type"`
	Description    string              `json:"description,omitempty"`
	Rationale      string              `json:"rationale,omitempty"`
	ValueSets      []ValueSet          `json:"valuesets,omitempty"`
	Criteria       MeasureCriteria     `json:"criteria"`
	Performance    *PerformanceTargets `json:"performance,omitempty"`
}
