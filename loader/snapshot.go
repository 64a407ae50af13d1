package loader

import (
	"fmt"
	"time"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/pkg/logger"
)

// resource kinds mapped from FHIR resourceType to engine event kinds.
var eventKindByResourceType = map[string]qm.EventKind{
	"Condition":         qm.EventCondition,
	"Encounter":         qm.EventEncounter,
	"MedicationRequest": qm.EventMedication,
	"Procedure":         qm.EventProcedure,
}

// BuildSnapshot materializes a patient snapshot from a FHIR bundle parsed
// as a generic JSON map. The bundle must contain exactly one Patient
// resource; Condition, Encounter, MedicationRequest, Procedure and
// Observation resources become clinical events and observations.
//
// Conversion is fail-closed: entries that cannot be interpreted are
// skipped with a warning rather than aborting the snapshot.
func BuildSnapshot(bundle map[string]any) (*qm.PatientSnapshot, error) {
	if bundle == nil {
		return nil, fmt.Errorf("bundle is nil")
	}
	if rt, _ := bundle["resourceType"].(string); rt != "Bundle" {
		return nil, fmt.Errorf("expected a Bundle resource, got %q", rt)
	}

	snapshot := &qm.PatientSnapshot{}
	havePatient := false

	entries, _ := bundle["entry"].([]any)
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		resource, ok := entry["resource"].(map[string]any)
		if !ok {
			continue
		}

		rt, _ := resource["resourceType"].(string)
		switch {
		case rt == "Patient":
			if havePatient {
				return nil, fmt.Errorf("bundle contains more than one Patient resource")
			}
			applyPatient(resource, snapshot)
			havePatient = true
		case rt == "Observation":
			applyObservation(resource, snapshot)
		case eventKindByResourceType[rt] != "":
			applyEvent(resource, eventKindByResourceType[rt], snapshot)
		}
	}

	if !havePatient {
		return nil, fmt.Errorf("bundle contains no Patient resource")
	}
	return snapshot, nil
}

// applyPatient fills identity, date of birth and gender, and retains the
// raw resource for expression criteria.
func applyPatient(resource map[string]any, snapshot *qm.PatientSnapshot) {
	snapshot.ID, _ = resource["id"].(string)
	snapshot.Gender, _ = resource["gender"].(string)
	snapshot.Resource = resource

	if birthDate, ok := resource["birthDate"].(string); ok {
		if t, err := parseFHIRDate(birthDate); err == nil {
			snapshot.DateOfBirth = t
		} else {
			logger.Warn("patient %s has unparseable birthDate %q", snapshot.ID, birthDate)
		}
	}
}

// applyEvent converts a coded resource into a clinical event. Resources
// without a usable code or date are skipped with a warning.
func applyEvent(resource map[string]any, kind qm.EventKind, snapshot *qm.PatientSnapshot) {
	system, code, display := firstCoding(resource, codeElementFor(kind))
	if code == "" {
		logger.Warn("%s resource %v has no usable coding; skipped", kind, resource["id"])
		return
	}

	date := eventDate(resource)
	if date.IsZero() {
		logger.Warn("%s resource %v has no usable date; skipped", kind, resource["id"])
		return
	}

	snapshot.Events = append(snapshot.Events, qm.ClinicalEvent{
		Kind:    kind,
		System:  system,
		Code:    code,
		Display: display,
		Date:    date,
	})
}

// applyObservation converts an Observation resource. Observations with a
// numeric valueQuantity become named results; coded observations also
// become observation events so coded numerator criteria can match them.
func applyObservation(resource map[string]any, snapshot *qm.PatientSnapshot) {
	date := eventDate(resource)
	if date.IsZero() {
		logger.Warn("Observation resource %v has no usable date; skipped", resource["id"])
		return
	}

	system, code, display := firstCoding(resource, "code")
	if code != "" {
		snapshot.Events = append(snapshot.Events, qm.ClinicalEvent{
			Kind:    qm.EventObservation,
			System:  system,
			Code:    code,
			Display: display,
			Date:    date,
		})
	}

	name := observationName(resource, display)
	if name == "" {
		return
	}

	if quantity, ok := resource["valueQuantity"].(map[string]any); ok {
		if value, ok := quantity["value"].(float64); ok {
			unit, _ := quantity["unit"].(string)
			snapshot.Observations = append(snapshot.Observations, qm.Observation{
				Type:  name,
				Value: value,
				Unit:  unit,
				Date:  date,
			})
		}
	}

	// Component observations (e.g., blood-pressure panels) carry their own
	// named values.
	components, _ := resource["component"].([]any)
	for _, raw := range components {
		component, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		_, _, compDisplay := firstCoding(component, "code")
		compName := observationName(component, compDisplay)
		quantity, ok := component["valueQuantity"].(map[string]any)
		if !ok || compName == "" {
			continue
		}
		if value, ok := quantity["value"].(float64); ok {
			unit, _ := quantity["unit"].(string)
			snapshot.Observations = append(snapshot.Observations, qm.Observation{
				Type:  compName,
				Value: value,
				Unit:  unit,
				Date:  date,
			})
		}
	}
}

// codeElementFor returns the element holding a resource kind's primary
// coding.
func codeElementFor(kind qm.EventKind) string {
	switch kind {
	case qm.EventMedication:
		return "medicationCodeableConcept"
	case qm.EventEncounter:
		return "type"
	default:
		return "code"
	}
}

// firstCoding extracts the first coding from a CodeableConcept element.
// Encounter.type is a list of CodeableConcepts; the first is used.
func firstCoding(resource map[string]any, element string) (system, code, display string) {
	value := resource[element]
	if list, ok := value.([]any); ok && len(list) > 0 {
		value = list[0]
	}
	concept, ok := value.(map[string]any)
	if !ok {
		return "", "", ""
	}

	codings, _ := concept["coding"].([]any)
	for _, raw := range codings {
		coding, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		code, _ = coding["code"].(string)
		if code == "" {
			continue
		}
		system, _ = coding["system"].(string)
		display, _ = coding["display"].(string)
		return system, code, display
	}
	return "", "", ""
}

// observationName resolves the result-type name for comparator matching:
// code.text preferred, coding display as fallback.
func observationName(resource map[string]any, display string) string {
	if concept, ok := resource["code"].(map[string]any); ok {
		if text, ok := concept["text"].(string); ok && text != "" {
			return text
		}
	}
	return display
}

// eventDate picks the first usable date from the elements resources
// conventionally carry.
func eventDate(resource map[string]any) time.Time {
	for _, element := range []string{
		"effectiveDateTime", "onsetDateTime", "performedDateTime",
		"authoredOn", "recordedDate", "issued",
	} {
		if s, ok := resource[element].(string); ok {
			if t, err := parseFHIRDate(s); err == nil {
				return t
			}
		}
	}
	if period, ok := resource["period"].(map[string]any); ok {
		if s, ok := period["start"].(string); ok {
			if t, err := parseFHIRDate(s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// parseFHIRDate accepts FHIR date and dateTime strings.
func parseFHIRDate(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01",
		"2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
