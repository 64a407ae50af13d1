package loader

import (
	"testing"

	qm "github.com/gofhir/measures"
)

func TestParseMeasure(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		data := []byte(`{
			"id": "cbp-001",
			"title": "Controlling High Blood Pressure",
			"domain": "chronic-care",
			"criteria": {
				"initial_population": {
					"demographics": {"age_min": 18, "age_max": 85}
				},
				"denominator": {
					"conditions": ["2.16.840.1.113883.3.464.1003.104.12.1011"]
				},
				"denominator_exclusions": {
					"conditions": ["2.16.840.1.113883.3.464.1003.1003.12.1135"],
					"timeframe": 365
				},
				"numerator": {
					"results": [
						{"type": "systolic", "value": "140", "comparator": "<"}
					],
					"timeframe": {"before": 365, "after": 30}
				}
			}
		}`)

		measure, err := ParseMeasure(data)
		if err != nil {
			t.Fatalf("ParseMeasure() error = %v", err)
		}
		if measure.ID != "cbp-001" {
			t.Errorf("ID = %s; want cbp-001", measure.ID)
		}
		d := measure.Criteria.InitialPopulation.Demographics
		if d == nil || *d.AgeMin != 18 || *d.AgeMax != 85 {
			t.Errorf("Demographics = %+v; want ages 18-85", d)
		}
		if measure.Criteria.DenominatorExclusions.Timeframe != 365 {
			t.Errorf("exclusion Timeframe = %d; want 365", measure.Criteria.DenominatorExclusions.Timeframe)
		}
		spec := measure.Criteria.Numerator.Results[0]
		if spec.Comparator != qm.CompareLess || spec.Value != "140" {
			t.Errorf("result spec = %+v; want systolic < 140", spec)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := ParseMeasure([]byte(`{"title": "x"}`)); err == nil {
			t.Error("ParseMeasure() without id succeeded; want error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := ParseMeasure([]byte(`{`)); err == nil {
			t.Error("ParseMeasure() of invalid JSON succeeded; want error")
		}
	})
}

func TestParseSnapshot(t *testing.T) {
	t.Run("valid snapshot", func(t *testing.T) {
		data := []byte(`{
			"id": "p1",
			"dateOfBirth": "1954-06-01T00:00:00Z",
			"gender": "female",
			"events": [
				{"kind": "condition", "system": "http://hl7.org/fhir/sid/icd-10-cm", "code": "I10", "date": "2024-04-10T00:00:00Z"}
			],
			"observations": [
				{"type": "systolic", "value": 135, "unit": "mm[Hg]", "date": "2024-11-05T00:00:00Z"}
			]
		}`)

		snapshot, err := ParseSnapshot(data)
		if err != nil {
			t.Fatalf("ParseSnapshot() error = %v", err)
		}
		if snapshot.ID != "p1" || len(snapshot.Events) != 1 || len(snapshot.Observations) != 1 {
			t.Errorf("snapshot = %+v; want p1 with one event and one observation", snapshot)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := ParseSnapshot([]byte(`{"gender": "female"}`)); err == nil {
			t.Error("ParseSnapshot() without id succeeded; want error")
		}
	})
}

func TestParseBundleSnapshot(t *testing.T) {
	data := []byte(`{
		"resourceType": "Bundle",
		"type": "collection",
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "p1", "gender": "female", "birthDate": "1954-06-01"}}
		]
	}`)

	snapshot, err := ParseBundleSnapshot(data)
	if err != nil {
		t.Fatalf("ParseBundleSnapshot() error = %v", err)
	}
	if snapshot.ID != "p1" {
		t.Errorf("ID = %s; want p1", snapshot.ID)
	}

	if _, err := ParseBundleSnapshot([]byte(`not json`)); err == nil {
		t.Error("ParseBundleSnapshot() of invalid JSON succeeded; want error")
	}
}
