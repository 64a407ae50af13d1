package measures

import (
	"fmt"
	"time"
)

// MeasurementPeriod is the reporting window whose end date anchors all
// lookback and lookahead timeframe calculations.
type MeasurementPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod creates a measurement period from start and end dates.
// Returns an error if either date is zero or end precedes start.
func NewPeriod(start, end time.Time) (MeasurementPeriod, error) {
	if start.IsZero() || end.IsZero() {
		return MeasurementPeriod{}, fmt.Errorf("measurement period requires both start and end dates")
	}
	if end.Before(start) {
		return MeasurementPeriod{}, fmt.Errorf("measurement period end %s precedes start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return MeasurementPeriod{Start: start, End: end}, nil
}

// CalendarYear creates a measurement period covering an entire calendar year.
func CalendarYear(year int) MeasurementPeriod {
	return MeasurementPeriod{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Contains returns true if t falls inside the period, inclusive on both ends.
func (p MeasurementPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// LookbackContains returns true if t falls inside the rolling window of the
// given number of days measured inclusively backward from the period end.
func (p MeasurementPeriod) LookbackContains(t time.Time, days int) bool {
	if days < 0 {
		return false
	}
	from := p.End.AddDate(0, 0, -days)
	return !t.Before(from) && !t.After(p.End)
}

// WindowContains returns true if t falls inside [end-before, end+after].
func (p MeasurementPeriod) WindowContains(t time.Time, w Window) bool {
	from := p.End.AddDate(0, 0, -w.Before)
	to := p.End.AddDate(0, 0, w.After)
	return !t.Before(from) && !t.After(to)
}

// Key returns the period's identity for trend reporting, formatted as the
// end date's year-month (e.g., "2024-12").
func (p MeasurementPeriod) Key() string {
	return p.End.Format("2006-01")
}

// String returns a human-readable representation of the period.
func (p MeasurementPeriod) String() string {
	return p.Start.Format("2006-01-02") + ".." + p.End.Format("2006-01-02")
}
