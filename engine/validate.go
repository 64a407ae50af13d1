package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/pkg/logger"
)

// validate checks the measure definition once at construction. Structural
// problems are ConfigurationErrors and abort engine initialization.
// Referenced OIDs that are not registered are only warned about: evaluation
// of those clauses is fail-closed per patient, so the run can still
// complete (the clause simply never matches).
func (e *Engine) validate() error {
	m := e.measure
	if m.ID == "" {
		return qm.NewConfigurationError("(unknown)", "id", "measure has no id")
	}
	c := m.Criteria

	if d := c.InitialPopulation.Demographics; d != nil {
		if d.AgeMin != nil && *d.AgeMin < 0 {
			return qm.NewConfigurationError(m.ID, "initial_population.demographics.age_min", "must not be negative")
		}
		if d.AgeMax != nil && *d.AgeMax < 0 {
			return qm.NewConfigurationError(m.ID, "initial_population.demographics.age_max", "must not be negative")
		}
		if d.AgeMin != nil && d.AgeMax != nil && *d.AgeMin > *d.AgeMax {
			return qm.NewConfigurationError(m.ID, "initial_population.demographics",
				fmt.Sprintf("age_min %d exceeds age_max %d", *d.AgeMin, *d.AgeMax))
		}
	}

	if tf := c.InitialPopulation.Timeframe; tf != nil {
		switch tf.Type {
		case qm.TimeframeRolling:
			if tf.Lookback < 0 {
				return qm.NewConfigurationError(m.ID, "initial_population.timeframe.lookback", "must not be negative")
			}
		case qm.TimeframeAnnual:
			// lookback is unused for annual timeframes
		default:
			return qm.NewConfigurationError(m.ID, "initial_population.timeframe.type",
				fmt.Sprintf("unknown timeframe type %q", tf.Type))
		}
	}

	if excl := c.DenominatorExclusions; excl != nil {
		if excl.Timeframe < 0 {
			return qm.NewConfigurationError(m.ID, "denominator_exclusions.timeframe", "must not be negative")
		}
	}

	num := c.Numerator
	if len(num.Tests) == 0 && len(num.Procedures) == 0 && len(num.Results) == 0 && num.Expression == "" {
		return qm.NewConfigurationError(m.ID, "numerator", "requires at least one of tests, procedures, results or expression")
	}
	// An expression-only numerator with expression evaluation disabled would
	// qualify every denominator patient.
	if num.Expression != "" && e.expr == nil &&
		len(num.Tests) == 0 && len(num.Procedures) == 0 && len(num.Results) == 0 {
		return qm.NewConfigurationError(m.ID, "numerator.expression",
			"expression is the only numerator clause but expression evaluation is disabled")
	}
	if num.Timeframe.Before < 0 || num.Timeframe.After < 0 {
		return qm.NewConfigurationError(m.ID, "numerator.timeframe", "before/after must not be negative")
	}

	for i, spec := range num.Results {
		field := fmt.Sprintf("numerator.results[%d]", i)
		if spec.Type == "" {
			return qm.NewConfigurationError(m.ID, field+".type", "must not be empty")
		}
		if !spec.Comparator.IsValid() {
			return qm.NewConfigurationError(m.ID, field+".comparator",
				fmt.Sprintf("unknown comparator %q", spec.Comparator))
		}
		if _, err := decimal.NewFromString(spec.Value); err != nil {
			return qm.NewConfigurationError(m.ID, field+".value",
				fmt.Sprintf("%q is not numeric", spec.Value))
		}
	}

	if e.expr != nil && num.Expression != "" {
		if err := e.expr.Compile(num.Expression); err != nil {
			return qm.NewConfigurationError(m.ID, "numerator.expression", err.Error())
		}
	}

	e.warnUnresolved()
	return nil
}

// warnUnresolved logs every criteria OID that is not in the registry.
// These clauses will evaluate to non-matches for every patient.
func (e *Engine) warnUnresolved() {
	c := e.measure.Criteria
	refs := [][]string{
		c.InitialPopulation.Conditions,
		c.InitialPopulation.Encounters,
		c.InitialPopulation.Medications,
		c.Numerator.Tests,
		c.Numerator.Procedures,
	}
	if c.Denominator != nil {
		refs = append(refs, c.Denominator.Conditions, c.Denominator.Procedures, c.Denominator.Observations)
	}
	if c.DenominatorExclusions != nil {
		refs = append(refs, c.DenominatorExclusions.Conditions, c.DenominatorExclusions.Medications)
	}

	for _, oids := range refs {
		for _, oid := range oids {
			if !e.registry.Contains(oid) {
				logger.Warn("measure %s references unregistered value set %s; the clause will never match", e.measure.ID, oid)
			}
		}
	}
}
