// Package measures provides quality-measure eligibility evaluation and
// population analytics for clinical quality reporting.
//
// Given a declarative measure definition (value-set-bound criteria,
// demographic bounds, temporal windows, numerator comparators) and a
// patient's clinical history, the engine determines whether the patient
// belongs to the measure's initial population, denominator, exclusions
// and numerator, then aggregates per-patient results across a cohort
// into performance rates, care-gap lists and trend series.
//
// # Quick Start
//
//	import (
//	    qm "github.com/gofhir/measures"
//	    "github.com/gofhir/measures/aggregate"
//	    "github.com/gofhir/measures/engine"
//	    "github.com/gofhir/measures/valueset"
//	)
//
//	reg := valueset.NewRegistry()
//	for _, vs := range measure.ValueSets {
//	    if err := reg.Load(vs); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	eng, err := engine.New(measure, reg)
//	if err != nil {
//	    log.Fatal(err) // ConfigurationError: malformed definition
//	}
//
//	qual := eng.Evaluate(ctx, patient, period)
//	if qual.Qualifies {
//	    // patient is in the numerator
//	}
//
//	analysis, err := aggregate.New(eng).RunCohort(ctx, patients, period)
//
// # Evaluation Stages
//
// Each patient passes through a fixed sequence of stages, ending in an
// exhaustive terminal disposition:
//
//   - InitialPopulation: demographic bounds, qualifying events, timeframe
//   - Denominator: category criteria (conditions, procedures, observations)
//   - Exclusions: exclusion conditions/medications within their own lookback
//   - Numerator: required tests, procedures, result comparators
//
// An exclusion match always forces Qualifies=false, regardless of the
// numerator outcome. Population membership is monotonic: numerator members
// are denominator members, denominator members are initial-population
// members.
//
// # Failure Semantics
//
// Evaluation is fail-closed and total. Malformed or missing patient fields
// evaluate to "no match" for the affected clause only; unknown value-set
// references evaluate to non-membership with a logged warning. The engine
// always returns a well-formed MeasureQualification. The only fatal errors
// are ConfigurationErrors raised while validating the measure definition at
// engine construction.
//
// # Concurrency
//
// Per-patient evaluation is a pure function of (measure, registry, snapshot)
// with no shared mutable state, so cohort runs are dispatched across a
// worker pool with no locking during evaluation. The registry is sealed
// after loading and read lock-free thereafter. The aggregation merge is
// associative and commutative, so partial results combine in any order.
package measures
