// Package engine runs the per-patient measure evaluation state machine.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/criteria"
	"github.com/gofhir/measures/expression"
	"github.com/gofhir/measures/valueset"
)

// Stage names used for metrics and issue diagnostics.
const (
	StageInitialPopulation = "initial-population"
	StageDenominator       = "denominator"
	StageExclusions        = "exclusions"
	StageNumerator         = "numerator"
)

// Engine evaluates one quality measure against patient snapshots. The
// measure definition and registry are validated and sealed at construction
// and immutable for the life of the engine; a definition update requires a
// new engine instance.
type Engine struct {
	measure  qm.QualityMeasure
	options  *qm.Options
	registry *valueset.Registry
	eval     *criteria.Evaluator
	expr     *expression.Evaluator
	metrics  *qm.Metrics
}

// New creates an engine for the given measure. Value sets embedded in the
// measure definition are loaded into the registry, the definition is
// validated (returning a ConfigurationError on malformed criteria), the
// numerator expression is compiled if present, and the registry is sealed.
func New(measure qm.QualityMeasure, registry *valueset.Registry, opts ...qm.Option) (*Engine, error) {
	options := qm.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if registry == nil {
		registry = valueset.NewRegistry()
	}

	// Load the measure's own value sets before sealing. Conflicting
	// duplicates are configuration problems: the definition disagrees with
	// what the caller already loaded. A sealed registry cannot accept new
	// sets, so it must already contain every set the measure embeds;
	// otherwise every clause of the measure would fail closed.
	if registry.Sealed() {
		for _, vs := range measure.ValueSets {
			if !registry.Contains(vs.OID) {
				return nil, qm.NewConfigurationError(measure.ID, "valuesets",
					fmt.Sprintf("registry is sealed and is missing embedded value set %s", vs.OID))
			}
		}
	} else {
		for _, vs := range measure.ValueSets {
			if err := registry.Load(vs); err != nil {
				return nil, qm.NewConfigurationError(measure.ID, "valuesets", err.Error())
			}
		}
	}

	e := &Engine{
		measure:  measure,
		options:  options,
		registry: registry,
		eval:     criteria.New(registry),
		metrics:  qm.NewMetrics(),
	}

	if options.EvaluateExpressions && measure.Criteria.Numerator.Expression != "" {
		e.expr = expression.NewEvaluator(options.ExpressionCacheSize)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	registry.Seal()
	return e, nil
}

// Evaluate runs the state machine for one patient snapshot. It always
// returns a well-formed qualification: malformed patient fields degrade the
// affected clause to a non-match and surface as warning Issues.
func (e *Engine) Evaluate(ctx context.Context, patient *qm.PatientSnapshot, period qm.MeasurementPeriod) *qm.MeasureQualification {
	start := time.Now()

	q := &qm.MeasureQualification{
		MeasureID:  e.measure.ID,
		Population: qm.PopulationInitial,
		Exclusions: []string{},
		Requirements: qm.Requirements{
			Met:     []string{},
			Pending: []string{},
		},
	}
	if patient != nil {
		q.PatientID = patient.ID
	}

	e.run(ctx, patient, period, q)

	if e.options.CollectMetrics {
		e.metrics.RecordEvaluation(time.Since(start), q)
	}
	return q
}

// run advances the state machine to a terminal disposition.
func (e *Engine) run(ctx context.Context, patient *qm.PatientSnapshot, period qm.MeasurementPeriod, q *qm.MeasureQualification) {
	if !e.stageInitialPopulation(patient, period, q) {
		q.Disposition = qm.DispositionNotInInitialPopulation
		q.Population = qm.PopulationInitial
		return
	}

	if !e.stageDenominator(patient, period, q) {
		q.Disposition = qm.DispositionNotInDenominator
		q.Population = qm.PopulationInitial
		return
	}

	if e.stageExclusions(patient, period, q) {
		// Exclusions override any numerator result.
		q.Disposition = qm.DispositionExcluded
		q.Population = qm.PopulationDenominator
		q.Qualifies = false
		return
	}

	if e.stageNumerator(ctx, patient, period, q) {
		q.Disposition = qm.DispositionQualified
		q.Population = qm.PopulationNumerator
		q.Qualifies = true
		return
	}

	q.Disposition = qm.DispositionNotQualified
	q.Population = qm.PopulationDenominator
	due := period.End.AddDate(0, 0, e.measure.Criteria.Numerator.Timeframe.After)
	q.DueDate = &due
}

// stageInitialPopulation checks demographics and qualifying coded events.
// All present sub-clauses are conjunctive.
func (e *Engine) stageInitialPopulation(patient *qm.PatientSnapshot, period qm.MeasurementPeriod, q *qm.MeasureQualification) bool {
	start := time.Now()
	ip := e.measure.Criteria.InitialPopulation

	ok, issues := e.eval.Demographics(patient, ip.Demographics, period.End)
	q.AddIssues(issues)
	if !ok {
		e.recordStage(StageInitialPopulation, start, false)
		return false
	}

	matched := true
	for _, clause := range []struct {
		kind qm.EventKind
		oids []string
	}{
		{qm.EventCondition, ip.Conditions},
		{qm.EventEncounter, ip.Encounters},
		{qm.EventMedication, ip.Medications},
	} {
		if len(clause.oids) == 0 {
			continue
		}
		m := e.eval.Coded(patient.EventsOfKind(clause.kind), clause.oids, ip.Timeframe, period, StageInitialPopulation)
		q.AddIssues(m.Issues)
		if !m.Matched {
			matched = false
			break
		}
	}

	e.recordStage(StageInitialPopulation, start, matched)
	return matched
}

// stageDenominator checks the denominator categories. A category with
// entries must match (OR within its value-set list); present categories are
// ANDed; an absent category is vacuously satisfied.
func (e *Engine) stageDenominator(patient *qm.PatientSnapshot, period qm.MeasurementPeriod, q *qm.MeasureQualification) bool {
	den := e.measure.Criteria.Denominator
	if den == nil {
		return true
	}
	start := time.Now()

	matched := true
	for _, clause := range []struct {
		kind qm.EventKind
		oids []string
	}{
		{qm.EventCondition, den.Conditions},
		{qm.EventProcedure, den.Procedures},
		{qm.EventObservation, den.Observations},
	} {
		if len(clause.oids) == 0 {
			continue
		}
		m := e.eval.Coded(patient.EventsOfKind(clause.kind), clause.oids, nil, period, StageDenominator)
		q.AddIssues(m.Issues)
		if !m.Matched {
			matched = false
			break
		}
	}

	e.recordStage(StageDenominator, start, matched)
	return matched
}

// stageExclusions checks denominator exclusions within their own lookback.
// Every matched value set is recorded as an exclusion reason.
func (e *Engine) stageExclusions(patient *qm.PatientSnapshot, period qm.MeasurementPeriod, q *qm.MeasureQualification) bool {
	excl := e.measure.Criteria.DenominatorExclusions
	if excl == nil {
		return false
	}
	start := time.Now()
	tf := &qm.Timeframe{Type: qm.TimeframeRolling, Lookback: excl.Timeframe}

	labels, issues := e.eval.MatchedSets(patient.EventsOfKind(qm.EventCondition), excl.Conditions, tf, period, StageExclusions)
	q.AddIssues(issues)
	q.Exclusions = append(q.Exclusions, labels...)

	labels, issues = e.eval.MatchedSets(patient.EventsOfKind(qm.EventMedication), excl.Medications, tf, period, StageExclusions)
	q.AddIssues(issues)
	q.Exclusions = append(q.Exclusions, labels...)

	matched := len(q.Exclusions) > 0
	e.recordStage(StageExclusions, start, matched)
	return matched
}

// stageNumerator checks required tests, procedures, result comparators and
// the optional expression clause, all conjunctive, within the numerator
// before/after window.
func (e *Engine) stageNumerator(ctx context.Context, patient *qm.PatientSnapshot, period qm.MeasurementPeriod, q *qm.MeasureQualification) bool {
	start := time.Now()
	num := e.measure.Criteria.Numerator
	satisfied := true

	for _, clause := range []struct {
		kind qm.EventKind
		oids []string
	}{
		{qm.EventObservation, num.Tests},
		{qm.EventProcedure, num.Procedures},
	} {
		if len(clause.oids) == 0 {
			continue
		}
		m := e.eval.CodedWindow(patient.EventsOfKind(clause.kind), clause.oids, num.Timeframe, period, StageNumerator)
		q.AddIssues(m.Issues)
		if m.Matched {
			q.Requirements.Met = append(q.Requirements.Met, m.Label)
		} else {
			satisfied = false
			q.Requirements.Pending = append(q.Requirements.Pending, e.categoryLabel(clause.oids))
		}
	}

	if len(num.Results) > 0 {
		outcome := e.eval.Results(patient.Observations, num.Results, num.Timeframe, period)
		q.AddIssues(outcome.Issues)
		q.Requirements.Met = append(q.Requirements.Met, outcome.Met...)
		q.Requirements.Pending = append(q.Requirements.Pending, outcome.Pending...)
		if !outcome.Satisfied {
			satisfied = false
		}
	}

	if e.expr != nil && num.Expression != "" {
		ok := e.evaluateExpression(ctx, patient, num.Expression, q)
		if ok {
			q.Requirements.Met = append(q.Requirements.Met, num.Expression)
		} else {
			satisfied = false
			q.Requirements.Pending = append(q.Requirements.Pending, num.Expression)
		}
	}

	e.recordStage(StageNumerator, start, satisfied)
	return satisfied
}

// evaluateExpression runs the numerator FHIRPath expression against the
// snapshot's raw resource. Missing resources and evaluation errors are
// non-matches with a warning, never failures.
func (e *Engine) evaluateExpression(_ context.Context, patient *qm.PatientSnapshot, expr string, q *qm.MeasureQualification) bool {
	if patient == nil || patient.Resource == nil {
		q.AddIssue(qm.DataWarning(StageNumerator,
			"snapshot has no FHIR resource; expression clause treated as unmet"))
		return false
	}

	ok, err := e.expr.Evaluate(expr, patient.Resource)
	if err != nil {
		q.AddIssue(qm.Issue{
			Severity:    qm.SeverityWarning,
			Code:        qm.IssueTypeExpression,
			Diagnostics: err.Error(),
			Stage:       StageNumerator,
		})
		return false
	}
	return ok
}

// categoryLabel renders the alternatives of an unmet coded category, e.g.
// "Colonoscopy or Flexible Sigmoidoscopy".
func (e *Engine) categoryLabel(oids []string) string {
	labels := make([]string, 0, len(oids))
	for _, oid := range oids {
		labels = append(labels, e.eval.Label(oid))
	}
	return strings.Join(labels, " or ")
}

func (e *Engine) recordStage(stage string, start time.Time, matched bool) {
	if e.options.CollectMetrics {
		e.metrics.RecordStage(stage, time.Since(start), matched)
	}
}

// Measure returns the measure definition this engine evaluates.
func (e *Engine) Measure() qm.QualityMeasure {
	return e.measure
}

// Registry returns the sealed value-set registry.
func (e *Engine) Registry() *valueset.Registry {
	return e.registry
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *qm.Metrics {
	return e.metrics
}

// Options returns the engine's options.
func (e *Engine) Options() *qm.Options {
	return e.options
}
