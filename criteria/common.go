package criteria

import (
	"time"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/valueset"
)

// Evaluator evaluates single criteria clauses against patient snapshots
// using a sealed value-set registry. Evaluators are stateless and safe for
// concurrent use.
type Evaluator struct {
	registry *valueset.Registry
}

// New creates an evaluator backed by the given registry.
func New(registry *valueset.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Registry returns the backing value-set registry.
func (e *Evaluator) Registry() *valueset.Registry {
	return e.registry
}

// Label resolves a value-set OID to its display name for requirement and
// exclusion labels, falling back to the OID itself.
func (e *Evaluator) Label(oid string) string {
	return e.registry.Name(oid)
}

// inTimeframe reports whether an event date satisfies the given timeframe
// relative to the measurement period. A nil timeframe restricts events to
// the measurement period itself.
func inTimeframe(date time.Time, tf *qm.Timeframe, period qm.MeasurementPeriod) bool {
	if date.IsZero() {
		return false
	}
	if tf == nil {
		return period.Contains(date)
	}
	switch tf.Type {
	case qm.TimeframeAnnual:
		return date.Year() == period.End.Year()
	case qm.TimeframeRolling:
		return period.LookbackContains(date, tf.Lookback)
	default:
		return false
	}
}
