package criteria

import (
	qm "github.com/gofhir/measures"
)

// CodedMatch is the outcome of evaluating one coded-criteria clause.
type CodedMatch struct {
	// Matched is true iff any event's code is a member of any referenced
	// value set inside the clause's timeframe.
	Matched bool

	// Label names the matched value set, for requirement and exclusion
	// reporting. Empty when not matched.
	Label string

	// Issues documents unresolvable value-set references.
	Issues []qm.Issue
}

// Coded evaluates a coded-criteria clause: true iff any of the given events
// has a (system, code) that is a member of any referenced value set and the
// event date satisfies the timeframe. Unknown OIDs evaluate to
// non-membership with a warning issue; stage names the evaluation stage for
// diagnostics.
func (e *Evaluator) Coded(events []qm.ClinicalEvent, oids []string, tf *qm.Timeframe, period qm.MeasurementPeriod, stage string) CodedMatch {
	var match CodedMatch

	for _, oid := range oids {
		if !e.registry.Contains(oid) {
			// Registry logs the warning once; record it on the outcome too
			// so the qualification documents the degraded clause.
			match.Issues = append(match.Issues, qm.ValueSetWarning(stage, oid))
			continue
		}
		for _, ev := range events {
			if !inTimeframe(ev.Date, tf, period) {
				continue
			}
			if e.registry.IsMember(oid, ev.System, ev.Code) {
				match.Matched = true
				match.Label = e.Label(oid)
				return match
			}
		}
	}

	return match
}

// CodedLookback evaluates a coded clause with a plain rolling lookback in
// days, as used by denominator exclusions.
func (e *Evaluator) CodedLookback(events []qm.ClinicalEvent, oids []string, lookbackDays int, period qm.MeasurementPeriod, stage string) CodedMatch {
	tf := &qm.Timeframe{Type: qm.TimeframeRolling, Lookback: lookbackDays}
	return e.Coded(events, oids, tf, period, stage)
}

// MatchedSets returns the labels of every referenced value set with at
// least one member event inside the timeframe. Used by denominator
// exclusions, which report all matched reasons rather than the first.
func (e *Evaluator) MatchedSets(events []qm.ClinicalEvent, oids []string, tf *qm.Timeframe, period qm.MeasurementPeriod, stage string) ([]string, []qm.Issue) {
	var labels []string
	var issues []qm.Issue

	for _, oid := range oids {
		if !e.registry.Contains(oid) {
			issues = append(issues, qm.ValueSetWarning(stage, oid))
			continue
		}
		for _, ev := range events {
			if !inTimeframe(ev.Date, tf, period) {
				continue
			}
			if e.registry.IsMember(oid, ev.System, ev.Code) {
				labels = append(labels, e.Label(oid))
				break
			}
		}
	}

	return labels, issues
}

// CodedWindow evaluates a coded clause inside the numerator before/after
// window anchored at the measurement-period end date.
func (e *Evaluator) CodedWindow(events []qm.ClinicalEvent, oids []string, w qm.Window, period qm.MeasurementPeriod, stage string) CodedMatch {
	var match CodedMatch

	for _, oid := range oids {
		if !e.registry.Contains(oid) {
			match.Issues = append(match.Issues, qm.ValueSetWarning(stage, oid))
			continue
		}
		for _, ev := range events {
			if ev.Date.IsZero() || !period.WindowContains(ev.Date, w) {
				continue
			}
			if e.registry.IsMember(oid, ev.System, ev.Code) {
				match.Matched = true
				match.Label = e.Label(oid)
				return match
			}
		}
	}

	return match
}
