package criteria

import (
	"fmt"

	"github.com/shopspring/decimal"

	qm "github.com/gofhir/measures"
)

// ResultOutcome is the outcome of evaluating numerator result specs.
type ResultOutcome struct {
	// Satisfied is true iff every spec in the list was met (conjunctive).
	Satisfied bool

	// Met labels the specs that were satisfied.
	Met []string

	// Pending labels the specs that were not satisfied.
	Pending []string

	// Issues documents malformed specs and unusable observations.
	Issues []qm.Issue
}

// Results evaluates numerator result specs against a patient's observations.
// For each spec, the most recent observation of the named type inside
// [end-before, end+after] is selected; when multiple observations share the
// latest date, the one with the highest value wins. The spec's comparator
// is then applied to the selected value. All specs must be satisfied.
//
// Comparisons use exact decimal arithmetic; a spec whose value does not
// parse evaluates as unmet with a warning (the engine rejects such specs at
// load, so this only defends against definitions that bypassed validation).
func (e *Evaluator) Results(observations []qm.Observation, specs []qm.ResultSpec, w qm.Window, period qm.MeasurementPeriod) ResultOutcome {
	outcome := ResultOutcome{Satisfied: true}

	for _, spec := range specs {
		label := ResultLabel(spec)

		want, err := decimal.NewFromString(spec.Value)
		if err != nil {
			outcome.Issues = append(outcome.Issues, qm.DataWarning("numerator",
				fmt.Sprintf("result spec %q has non-numeric value %q; treated as unmet", spec.Type, spec.Value)))
			outcome.Satisfied = false
			outcome.Pending = append(outcome.Pending, label)
			continue
		}

		obs, found := latestInWindow(observations, spec.Type, w, period)
		if !found {
			outcome.Satisfied = false
			outcome.Pending = append(outcome.Pending, label)
			continue
		}

		if compare(decimal.NewFromFloat(obs.Value), spec.Comparator, want) {
			outcome.Met = append(outcome.Met, label)
		} else {
			outcome.Satisfied = false
			outcome.Pending = append(outcome.Pending, label)
		}
	}

	return outcome
}

// latestInWindow selects the most recent in-window observation of the named
// type. Ties on the latest date are broken by the highest value, so the
// selection is deterministic regardless of input order.
func latestInWindow(observations []qm.Observation, obsType string, w qm.Window, period qm.MeasurementPeriod) (qm.Observation, bool) {
	var best qm.Observation
	found := false

	for _, obs := range observations {
		if obs.Type != obsType || obs.Date.IsZero() {
			continue
		}
		if !period.WindowContains(obs.Date, w) {
			continue
		}
		if !found || obs.Date.After(best.Date) ||
			(obs.Date.Equal(best.Date) && obs.Value > best.Value) {
			best = obs
			found = true
		}
	}

	return best, found
}

// compare applies a comparator to exact decimal operands.
func compare(got decimal.Decimal, op qm.Comparator, want decimal.Decimal) bool {
	switch op {
	case qm.CompareGreater:
		return got.GreaterThan(want)
	case qm.CompareLess:
		return got.LessThan(want)
	case qm.CompareGreaterEqual:
		return got.GreaterThanOrEqual(want)
	case qm.CompareLessEqual:
		return got.LessThanOrEqual(want)
	case qm.CompareEqual:
		return got.Equal(want)
	default:
		return false
	}
}

// ResultLabel renders a result spec as a human-readable requirement label,
// e.g. "systolic < 140".
func ResultLabel(spec qm.ResultSpec) string {
	return spec.Type + " " + string(spec.Comparator) + " " + spec.Value
}
