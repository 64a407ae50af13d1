package loader

import (
	"encoding/json"
	"fmt"

	qm "github.com/gofhir/measures"
)

// ParseMeasure parses a JSON measure definition. Structural validation of
// the criteria happens at engine construction; this only rejects documents
// that are not valid measure JSON at all.
func ParseMeasure(data []byte) (qm.QualityMeasure, error) {
	var measure qm.QualityMeasure
	if err := json.Unmarshal(data, &measure); err != nil {
		return qm.QualityMeasure{}, fmt.Errorf("invalid measure JSON: %w", err)
	}
	if measure.ID == "" {
		return qm.QualityMeasure{}, fmt.Errorf("measure definition has no id")
	}
	return measure, nil
}

// ParseSnapshot parses an engine-native patient snapshot JSON document.
func ParseSnapshot(data []byte) (*qm.PatientSnapshot, error) {
	var snapshot qm.PatientSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("invalid patient snapshot JSON: %w", err)
	}
	if snapshot.ID == "" {
		return nil, fmt.Errorf("patient snapshot has no id")
	}
	return &snapshot, nil
}

// ParseBundleSnapshot parses a FHIR Bundle JSON document and materializes
// a patient snapshot from it.
func ParseBundleSnapshot(data []byte) (*qm.PatientSnapshot, error) {
	var bundle map[string]any
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("invalid bundle JSON: %w", err)
	}
	return BuildSnapshot(bundle)
}
