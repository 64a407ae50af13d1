package measures

import "time"

// EventKind classifies a coded clinical event on a patient snapshot.
type EventKind string

// Supported event kinds.
const (
	EventCondition   EventKind = "condition"
	EventEncounter   EventKind = "encounter"
	EventMedication  EventKind = "medication"
	EventProcedure   EventKind = "procedure"
	EventObservation EventKind = "observation"
)

// IsValid returns true if this is a supported event kind.
func (k EventKind) IsValid() bool {
	switch k {
	case EventCondition, EventEncounter, EventMedication, EventProcedure, EventObservation:
		return true
	default:
		return false
	}
}

// ClinicalEvent is a single dated, coded event in a patient's history.
type ClinicalEvent struct {
	Kind    EventKind `json:"kind"`
	System  string    `json:"system"`
	Code    string    `json:"code"`
	Display string    `json:"display,omitempty"`
	Date    time.Time `json:"date"`
}

// Observation is a named numeric clinical result.
type Observation struct {
	Type  string    `json:"type"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit,omitempty"`
	Date  time.Time `json:"date"`
}

// PatientSnapshot is the materialized clinical history the engine evaluates.
// Snapshots are supplied per evaluation call and never cached or mutated by
// the engine. Missing fields evaluate to "no match" for the affected clause.
type PatientSnapshot struct {
	ID          string          `json:"id"`
	DateOfBirth time.Time       `json:"dateOfBirth"`
	Gender      string          `json:"gender,omitempty"`
	Events      []ClinicalEvent `json:"events,omitempty"`
	Observations []Observation  `json:"observations,omitempty"`

	// Resource optionally carries the patient's raw FHIR resource for
	// expression criteria. Nil when expression criteria are not used.
	Resource map[string]any `json:"resource,omitempty"`
}

// EventsOfKind returns the patient's events of the given kind.
func (p *PatientSnapshot) EventsOfKind(kind EventKind) []ClinicalEvent {
	if p == nil || len(p.Events) == 0 {
		return nil
	}
	var out []ClinicalEvent
	for _, e := range p.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// AgeAt returns the patient's age in whole years at the given date.
// Returns -1 if the date of birth is missing or in the future of asOf.
func (p *PatientSnapshot) AgeAt(asOf time.Time) int {
	if p == nil || p.DateOfBirth.IsZero() || asOf.Before(p.DateOfBirth) {
		return -1
	}
	age := asOf.Year() - p.DateOfBirth.Year()
	// Birthday not yet reached in the asOf year
	anniversary := p.DateOfBirth.AddDate(age, 0, 0)
	if asOf.Before(anniversary) {
		age--
	}
	return age
}
