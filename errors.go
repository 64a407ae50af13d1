package measures

import "fmt"

// ConfigurationError reports a malformed measure definition detected while
// validating at engine construction. Configuration errors are fatal: the
// engine refuses to start with a definition it cannot evaluate.
type ConfigurationError struct {
	// MeasureID identifies the offending measure.
	MeasureID string

	// Field is the criteria field that failed validation.
	Field string

	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("measure %s: invalid %s: %s", e.MeasureID, e.Field, e.Reason)
	}
	return fmt.Sprintf("measure %s: %s", e.MeasureID, e.Reason)
}

// NewConfigurationError builds a ConfigurationError for a criteria field.
func NewConfigurationError(measureID, field, reason string) *ConfigurationError {
	return &ConfigurationError{MeasureID: measureID, Field: field, Reason: reason}
}
