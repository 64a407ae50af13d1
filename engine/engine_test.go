package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/valueset"
)

const (
	oidOfficeVisit  = "2.16.840.1.113883.3.464.1003.101.12.1001"
	oidHypertension = "2.16.840.1.113883.3.464.1003.104.12.1011"
	oidHospice      = "2.16.840.1.113883.3.464.1003.1003.12.1135"
	oidUnknown      = "2.16.840.1.113883.3.464.1003.999"

	systemCPT    = "http://www.ama-assn.org/go/cpt"
	systemICD10  = "http://hl7.org/fhir/sid/icd-10-cm"
	systemSNOMED = "http://snomed.info/sct"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

// controlledBPMeasure builds a controlling-high-blood-pressure measure:
// adults 18-85 with an office visit, diagnosed hypertension, excluded when
// in hospice within a year, compliant when the most recent blood pressure
// reading is below 140/90.
func controlledBPMeasure() qm.QualityMeasure {
	return qm.QualityMeasure{
		ID:    "cbp-001",
		Title: "Controlling High Blood Pressure",
		ValueSets: []qm.ValueSet{
			{
				OID:  oidOfficeVisit,
				Name: "Office Visit",
				Concepts: []qm.ValueSetConcept{
					{System: systemCPT, Code: "99213"},
				},
			},
			{
				OID:  oidHypertension,
				Name: "Essential Hypertension",
				Concepts: []qm.ValueSetConcept{
					{System: systemICD10, Code: "I10"},
				},
			},
			{
				OID:  oidHospice,
				Name: "Hospice Care",
				Concepts: []qm.ValueSetConcept{
					{System: systemSNOMED, Code: "385763009"},
				},
			},
		},
		Criteria: qm.MeasureCriteria{
			InitialPopulation: qm.InitialPopulationCriteria{
				Demographics: &qm.Demographics{AgeMin: intPtr(18), AgeMax: intPtr(85)},
				Encounters:   []string{oidOfficeVisit},
				Timeframe:    &qm.Timeframe{Type: qm.TimeframeAnnual},
			},
			Denominator: &qm.DenominatorCriteria{
				Conditions: []string{oidHypertension},
			},
			DenominatorExclusions: &qm.ExclusionCriteria{
				Conditions: []string{oidHospice},
				Timeframe:  365,
			},
			Numerator: qm.NumeratorCriteria{
				Results: []qm.ResultSpec{
					{Type: "systolic", Value: "140", Comparator: qm.CompareLess},
					{Type: "diastolic", Value: "90", Comparator: qm.CompareLess},
				},
				Timeframe: qm.Window{Before: 365, After: 30},
			},
		},
	}
}

// compliantPatient builds a patient that fully qualifies for
// controlledBPMeasure in the 2024 calendar year.
func compliantPatient() *qm.PatientSnapshot {
	return &qm.PatientSnapshot{
		ID:          "p1",
		DateOfBirth: date(1954, 6, 1),
		Gender:      "female",
		Events: []qm.ClinicalEvent{
			{Kind: qm.EventEncounter, System: systemCPT, Code: "99213", Date: date(2024, 4, 10)},
			{Kind: qm.EventCondition, System: systemICD10, Code: "I10", Date: date(2024, 4, 10)},
		},
		Observations: []qm.Observation{
			{Type: "systolic", Value: 135, Unit: "mm[Hg]", Date: date(2024, 11, 5)},
			{Type: "diastolic", Value: 85, Unit: "mm[Hg]", Date: date(2024, 11, 5)},
		},
	}
}

func newEngine(t *testing.T, measure qm.QualityMeasure, opts ...qm.Option) *Engine {
	t.Helper()
	e, err := New(measure, nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestEvaluateQualified(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	q := e.Evaluate(context.Background(), compliantPatient(), period)

	if !q.Qualifies {
		t.Errorf("Qualifies = false; want true (issues: %v, pending: %v)", q.Issues, q.Requirements.Pending)
	}
	if q.Disposition != qm.DispositionQualified {
		t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionQualified)
	}
	if q.Population != qm.PopulationNumerator {
		t.Errorf("Population = %s; want %s", q.Population, qm.PopulationNumerator)
	}
	if len(q.Requirements.Met) != 2 {
		t.Errorf("Requirements.Met = %v; want 2 entries", q.Requirements.Met)
	}
	if len(q.Requirements.Pending) != 0 {
		t.Errorf("Requirements.Pending = %v; want empty", q.Requirements.Pending)
	}
	if q.DueDate != nil {
		t.Errorf("DueDate = %v; want nil for a qualified patient", q.DueDate)
	}
	if len(q.Exclusions) != 0 {
		t.Errorf("Exclusions = %v; want empty", q.Exclusions)
	}
	if q.PatientID != "p1" || q.MeasureID != "cbp-001" {
		t.Errorf("identity = (%s, %s); want (p1, cbp-001)", q.PatientID, q.MeasureID)
	}
}

func TestEvaluateNotInInitialPopulation(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	t.Run("age above bound", func(t *testing.T) {
		p := compliantPatient()
		p.DateOfBirth = date(1934, 6, 1) // age 90 at period end

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotInInitialPopulation {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInInitialPopulation)
		}
		if q.Qualifies {
			t.Error("Qualifies = true; want false")
		}
		if q.Population != qm.PopulationInitial {
			t.Errorf("Population = %s; want %s", q.Population, qm.PopulationInitial)
		}
	})

	t.Run("no qualifying encounter", func(t *testing.T) {
		p := compliantPatient()
		p.Events = p.Events[1:] // drop the office visit

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotInInitialPopulation {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInInitialPopulation)
		}
	})

	t.Run("encounter outside annual timeframe", func(t *testing.T) {
		p := compliantPatient()
		p.Events[0].Date = date(2023, 11, 1)

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotInInitialPopulation {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInInitialPopulation)
		}
	})
}

func TestEvaluateNotInDenominator(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	p := compliantPatient()
	p.Events = p.Events[:1] // keep the visit, drop the hypertension diagnosis

	q := e.Evaluate(context.Background(), p, period)
	if q.Disposition != qm.DispositionNotInDenominator {
		t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInDenominator)
	}
	if q.Qualifies {
		t.Error("Qualifies = true; want false")
	}
	if q.DueDate != nil {
		t.Error("DueDate set for a patient outside the denominator")
	}
}

func TestEvaluateNotQualified(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	p := compliantPatient()
	p.Observations[0].Value = 152 // uncontrolled systolic

	q := e.Evaluate(context.Background(), p, period)
	if q.Disposition != qm.DispositionNotQualified {
		t.Fatalf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotQualified)
	}
	if q.Qualifies {
		t.Error("Qualifies = true; want false")
	}
	if q.Population != qm.PopulationDenominator {
		t.Errorf("Population = %s; want %s", q.Population, qm.PopulationDenominator)
	}
	if len(q.Requirements.Pending) != 1 || q.Requirements.Pending[0] != "systolic < 140" {
		t.Errorf("Pending = %v; want [systolic < 140]", q.Requirements.Pending)
	}
	if len(q.Requirements.Met) != 1 || q.Requirements.Met[0] != "diastolic < 90" {
		t.Errorf("Met = %v; want [diastolic < 90]", q.Requirements.Met)
	}

	wantDue := period.End.AddDate(0, 0, 30)
	if q.DueDate == nil || !q.DueDate.Equal(wantDue) {
		t.Errorf("DueDate = %v; want %v", q.DueDate, wantDue)
	}
}

func TestEvaluateExclusionOverridesNumerator(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	p := compliantPatient() // numerator would be satisfied
	p.Events = append(p.Events, qm.ClinicalEvent{
		Kind: qm.EventCondition, System: systemSNOMED, Code: "385763009", Date: date(2024, 9, 1),
	})

	q := e.Evaluate(context.Background(), p, period)
	if q.Disposition != qm.DispositionExcluded {
		t.Fatalf("Disposition = %s; want %s", q.Disposition, qm.DispositionExcluded)
	}
	if q.Qualifies {
		t.Error("Qualifies = true; want false despite a compliant blood pressure")
	}
	if q.Population != qm.PopulationDenominator {
		t.Errorf("Population = %s; want %s", q.Population, qm.PopulationDenominator)
	}
	if len(q.Exclusions) != 1 || q.Exclusions[0] != "Hospice Care" {
		t.Errorf("Exclusions = %v; want [Hospice Care]", q.Exclusions)
	}
	if q.DueDate != nil {
		t.Error("DueDate set for an excluded patient")
	}
}

func TestEvaluateExclusionLookbackBoundary(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	p := compliantPatient()
	p.Events = append(p.Events, qm.ClinicalEvent{
		Kind: qm.EventCondition, System: systemSNOMED, Code: "385763009",
		Date: period.End.AddDate(0, 0, -400), // beyond the 365-day lookback
	})

	q := e.Evaluate(context.Background(), p, period)
	if q.Disposition != qm.DispositionQualified {
		t.Errorf("Disposition = %s; want %s for an exclusion outside its lookback", q.Disposition, qm.DispositionQualified)
	}
	if len(q.Exclusions) != 0 {
		t.Errorf("Exclusions = %v; want empty", q.Exclusions)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)
	p := compliantPatient()

	first := e.Evaluate(context.Background(), p, period)
	second := e.Evaluate(context.Background(), p, period)

	if first.Disposition != second.Disposition || first.Qualifies != second.Qualifies {
		t.Errorf("repeat evaluation differed: %s/%v vs %s/%v",
			first.Disposition, first.Qualifies, second.Disposition, second.Qualifies)
	}
	if len(first.Requirements.Met) != len(second.Requirements.Met) {
		t.Errorf("Met differed across evaluations: %v vs %v",
			first.Requirements.Met, second.Requirements.Met)
	}
}

func TestEvaluateNilPatient(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	q := e.Evaluate(context.Background(), nil, period)
	if q.Disposition != qm.DispositionNotInInitialPopulation {
		t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInInitialPopulation)
	}
	if !q.HasWarnings() {
		t.Error("HasWarnings() = false; want a data warning for the nil snapshot")
	}
}

func TestEvaluateUnknownValueSet(t *testing.T) {
	// The denominator references a value set the measure never embeds. The
	// engine still constructs; the clause fails closed per patient.
	m := controlledBPMeasure()
	m.Criteria.Denominator.Conditions = []string{oidUnknown}

	e := newEngine(t, m)
	q := e.Evaluate(context.Background(), compliantPatient(), qm.CalendarYear(2024))

	if q.Disposition != qm.DispositionNotInDenominator {
		t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInDenominator)
	}
	found := false
	for _, issue := range q.Issues {
		if issue.Code == qm.IssueTypeValueSet {
			found = true
		}
	}
	if !found {
		t.Errorf("Issues = %v; want a value-set warning", q.Issues)
	}
}

func TestEvaluateExpressionCriteria(t *testing.T) {
	m := controlledBPMeasure()
	m.Criteria.Numerator.Expression = "gender = 'female'"

	e := newEngine(t, m)
	period := qm.CalendarYear(2024)

	t.Run("expression satisfied", func(t *testing.T) {
		p := compliantPatient()
		p.Resource = map[string]any{"resourceType": "Patient", "gender": "female"}

		q := e.Evaluate(context.Background(), p, period)
		if !q.Qualifies {
			t.Errorf("Qualifies = false; want true (pending: %v, issues: %v)", q.Requirements.Pending, q.Issues)
		}
	})

	t.Run("expression unmet", func(t *testing.T) {
		p := compliantPatient()
		p.Resource = map[string]any{"resourceType": "Patient", "gender": "male"}

		q := e.Evaluate(context.Background(), p, period)
		if q.Qualifies {
			t.Error("Qualifies = true; want false")
		}
		if q.Disposition != qm.DispositionNotQualified {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotQualified)
		}
	})

	t.Run("missing resource degrades to unmet", func(t *testing.T) {
		p := compliantPatient() // no Resource attached

		q := e.Evaluate(context.Background(), p, period)
		if q.Qualifies {
			t.Error("Qualifies = true; want false without a FHIR resource")
		}
		if !q.HasWarnings() {
			t.Error("HasWarnings() = false; want a warning for the missing resource")
		}
	})

	t.Run("expressions disabled", func(t *testing.T) {
		off := newEngine(t, m, qm.WithExpressions(false))
		p := compliantPatient() // no Resource, but the clause is skipped

		q := off.Evaluate(context.Background(), p, period)
		if !q.Qualifies {
			t.Errorf("Qualifies = false with expressions disabled; pending: %v", q.Requirements.Pending)
		}
	})
}

const (
	oidFOBT          = "2.16.840.1.113883.3.464.1003.198.12.1011"
	oidColonoscopy   = "2.16.840.1.113883.3.464.1003.108.12.1020"
	oidSigmoidoscopy = "2.16.840.1.113883.3.464.1003.198.12.1010"

	systemLOINC = "http://loinc.org"
)

// colorectalScreeningMeasure builds a screening measure whose numerator is
// purely coded: a lab test category plus a procedure category with two
// alternative value sets.
func colorectalScreeningMeasure() qm.QualityMeasure {
	return qm.QualityMeasure{
		ID:    "ccs-001",
		Title: "Colorectal Cancer Screening",
		ValueSets: []qm.ValueSet{
			{
				OID:  oidOfficeVisit,
				Name: "Office Visit",
				Concepts: []qm.ValueSetConcept{
					{System: systemCPT, Code: "99213"},
				},
			},
			{
				OID:  oidFOBT,
				Name: "Fecal Occult Blood Test",
				Concepts: []qm.ValueSetConcept{
					{System: systemLOINC, Code: "82274-1"},
				},
			},
			{
				OID:  oidColonoscopy,
				Name: "Colonoscopy",
				Concepts: []qm.ValueSetConcept{
					{System: systemSNOMED, Code: "73761001"},
				},
			},
			{
				OID:  oidSigmoidoscopy,
				Name: "Flexible Sigmoidoscopy",
				Concepts: []qm.ValueSetConcept{
					{System: systemSNOMED, Code: "44441009"},
				},
			},
		},
		Criteria: qm.MeasureCriteria{
			InitialPopulation: qm.InitialPopulationCriteria{
				Demographics: &qm.Demographics{AgeMin: intPtr(50), AgeMax: intPtr(75)},
				Encounters:   []string{oidOfficeVisit},
				Timeframe:    &qm.Timeframe{Type: qm.TimeframeAnnual},
			},
			Numerator: qm.NumeratorCriteria{
				Tests:      []string{oidFOBT},
				Procedures: []string{oidColonoscopy, oidSigmoidoscopy},
				Timeframe:  qm.Window{Before: 3650, After: 60},
			},
		},
	}
}

// screenedPatient satisfies colorectalScreeningMeasure in 2024: an office
// visit, a current stool test and a colonoscopy within the ten-year window.
func screenedPatient() *qm.PatientSnapshot {
	return &qm.PatientSnapshot{
		ID:          "p10",
		DateOfBirth: date(1960, 3, 15),
		Gender:      "male",
		Events: []qm.ClinicalEvent{
			{Kind: qm.EventEncounter, System: systemCPT, Code: "99213", Date: date(2024, 5, 10)},
			{Kind: qm.EventObservation, System: systemLOINC, Code: "82274-1", Date: date(2024, 6, 1)},
			{Kind: qm.EventProcedure, System: systemSNOMED, Code: "73761001", Date: date(2019, 8, 20)},
		},
	}
}

func TestEvaluateCodedNumerator(t *testing.T) {
	e := newEngine(t, colorectalScreeningMeasure())
	period := qm.CalendarYear(2024)

	t.Run("test and procedure met", func(t *testing.T) {
		q := e.Evaluate(context.Background(), screenedPatient(), period)
		if q.Disposition != qm.DispositionQualified {
			t.Fatalf("Disposition = %s; want %s (pending: %v)", q.Disposition, qm.DispositionQualified, q.Requirements.Pending)
		}
		want := []string{"Fecal Occult Blood Test", "Colonoscopy"}
		if len(q.Requirements.Met) != 2 || q.Requirements.Met[0] != want[0] || q.Requirements.Met[1] != want[1] {
			t.Errorf("Met = %v; want %v", q.Requirements.Met, want)
		}
	})

	t.Run("alternative procedure set", func(t *testing.T) {
		p := screenedPatient()
		p.Events[2] = qm.ClinicalEvent{
			Kind: qm.EventProcedure, System: systemSNOMED, Code: "44441009", Date: date(2023, 2, 14),
		}

		q := e.Evaluate(context.Background(), p, period)
		if !q.Qualifies {
			t.Fatalf("Qualifies = false; want true (pending: %v)", q.Requirements.Pending)
		}
		if len(q.Requirements.Met) != 2 || q.Requirements.Met[1] != "Flexible Sigmoidoscopy" {
			t.Errorf("Met = %v; want the sigmoidoscopy label second", q.Requirements.Met)
		}
	})

	t.Run("missing procedure pends the joined label", func(t *testing.T) {
		p := screenedPatient()
		p.Events = p.Events[:2] // drop the colonoscopy

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotQualified {
			t.Fatalf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotQualified)
		}
		if len(q.Requirements.Met) != 1 || q.Requirements.Met[0] != "Fecal Occult Blood Test" {
			t.Errorf("Met = %v; want [Fecal Occult Blood Test]", q.Requirements.Met)
		}
		if len(q.Requirements.Pending) != 1 || q.Requirements.Pending[0] != "Colonoscopy or Flexible Sigmoidoscopy" {
			t.Errorf("Pending = %v; want [Colonoscopy or Flexible Sigmoidoscopy]", q.Requirements.Pending)
		}
		wantDue := period.End.AddDate(0, 0, 60)
		if q.DueDate == nil || !q.DueDate.Equal(wantDue) {
			t.Errorf("DueDate = %v; want %v", q.DueDate, wantDue)
		}
	})

	t.Run("procedure outside window", func(t *testing.T) {
		p := screenedPatient()
		p.Events[2].Date = date(2014, 1, 1) // beyond the ten-year lookback

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotQualified {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotQualified)
		}
	})

	t.Run("missing test pends its own label", func(t *testing.T) {
		p := screenedPatient()
		p.Events = append(p.Events[:1], p.Events[2]) // drop the stool test

		q := e.Evaluate(context.Background(), p, period)
		if q.Qualifies {
			t.Fatal("Qualifies = true; want false without the lab test")
		}
		if len(q.Requirements.Pending) != 1 || q.Requirements.Pending[0] != "Fecal Occult Blood Test" {
			t.Errorf("Pending = %v; want [Fecal Occult Blood Test]", q.Requirements.Pending)
		}
	})
}

const (
	oidDiabetes  = "2.16.840.1.113883.3.464.1003.103.12.1001"
	oidDialysis  = "2.16.840.1.113883.3.464.1003.109.12.1013"
	oidEGFRPanel = "2.16.840.1.113883.3.464.1003.109.12.1025"
)

// kidneyEvaluationMeasure exercises every denominator category: a diabetes
// diagnosis, a dialysis procedure and a kidney-panel observation event must
// all be present.
func kidneyEvaluationMeasure() qm.QualityMeasure {
	return qm.QualityMeasure{
		ID:    "ked-001",
		Title: "Kidney Health Evaluation",
		ValueSets: []qm.ValueSet{
			{
				OID:  oidDiabetes,
				Name: "Diabetes",
				Concepts: []qm.ValueSetConcept{
					{System: systemICD10, Code: "E11.9"},
				},
			},
			{
				OID:  oidDialysis,
				Name: "Dialysis Services",
				Concepts: []qm.ValueSetConcept{
					{System: systemSNOMED, Code: "302497006"},
				},
			},
			{
				OID:  oidEGFRPanel,
				Name: "Kidney Panel",
				Concepts: []qm.ValueSetConcept{
					{System: systemLOINC, Code: "33914-3"},
				},
			},
		},
		Criteria: qm.MeasureCriteria{
			InitialPopulation: qm.InitialPopulationCriteria{
				Demographics: &qm.Demographics{AgeMin: intPtr(18), AgeMax: intPtr(85)},
			},
			Denominator: &qm.DenominatorCriteria{
				Conditions:   []string{oidDiabetes},
				Procedures:   []string{oidDialysis},
				Observations: []string{oidEGFRPanel},
			},
			Numerator: qm.NumeratorCriteria{
				Results: []qm.ResultSpec{
					{Type: "hba1c", Value: "8", Comparator: qm.CompareLess},
				},
				Timeframe: qm.Window{Before: 365},
			},
		},
	}
}

func kidneyPatient() *qm.PatientSnapshot {
	return &qm.PatientSnapshot{
		ID:          "p20",
		DateOfBirth: date(1958, 9, 2),
		Gender:      "female",
		Events: []qm.ClinicalEvent{
			{Kind: qm.EventCondition, System: systemICD10, Code: "E11.9", Date: date(2024, 2, 1)},
			{Kind: qm.EventProcedure, System: systemSNOMED, Code: "302497006", Date: date(2024, 3, 12)},
			{Kind: qm.EventObservation, System: systemLOINC, Code: "33914-3", Date: date(2024, 7, 9)},
		},
		Observations: []qm.Observation{
			{Type: "hba1c", Value: 7.2, Unit: "%", Date: date(2024, 7, 9)},
		},
	}
}

func TestEvaluateDenominatorCategories(t *testing.T) {
	e := newEngine(t, kidneyEvaluationMeasure())
	period := qm.CalendarYear(2024)

	t.Run("all categories present", func(t *testing.T) {
		q := e.Evaluate(context.Background(), kidneyPatient(), period)
		if q.Disposition != qm.DispositionQualified {
			t.Errorf("Disposition = %s; want %s (issues: %v)", q.Disposition, qm.DispositionQualified, q.Issues)
		}
	})

	t.Run("missing procedure", func(t *testing.T) {
		p := kidneyPatient()
		p.Events = append(p.Events[:1], p.Events[2]) // drop the dialysis procedure

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotInDenominator {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInDenominator)
		}
	})

	t.Run("missing observation event", func(t *testing.T) {
		p := kidneyPatient()
		p.Events = p.Events[:2] // drop the kidney panel

		q := e.Evaluate(context.Background(), p, period)
		if q.Disposition != qm.DispositionNotInDenominator {
			t.Errorf("Disposition = %s; want %s", q.Disposition, qm.DispositionNotInDenominator)
		}
	})
}

func TestNewWithSealedRegistry(t *testing.T) {
	m := controlledBPMeasure()

	t.Run("complete sealed registry", func(t *testing.T) {
		r := valueset.NewRegistry()
		for _, vs := range m.ValueSets {
			if err := r.Load(vs); err != nil {
				t.Fatalf("Load(%s) error = %v", vs.OID, err)
			}
		}
		r.Seal()

		if _, err := New(m, r); err != nil {
			t.Errorf("New() with a complete sealed registry error = %v; want nil", err)
		}
	})

	t.Run("sealed registry missing an embedded set", func(t *testing.T) {
		r := valueset.NewRegistry()
		if err := r.Load(m.ValueSets[0]); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		r.Seal()

		_, err := New(m, r)
		var cfg *qm.ConfigurationError
		if !errors.As(err, &cfg) {
			t.Fatalf("New() error = %v; want ConfigurationError", err)
		}
		if cfg.Field != "valuesets" {
			t.Errorf("ConfigurationError.Field = %q; want %q", cfg.Field, "valuesets")
		}
	})
}

func TestNewExpressionOnlyNumeratorDisabled(t *testing.T) {
	m := controlledBPMeasure()
	m.Criteria.Numerator = qm.NumeratorCriteria{Expression: "gender = 'female'"}

	if _, err := New(m, nil); err != nil {
		t.Fatalf("New() with expressions enabled error = %v; want nil", err)
	}

	_, err := New(m, nil, qm.WithExpressions(false))
	var cfg *qm.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("New() error = %v; want ConfigurationError", err)
	}
	if !strings.Contains(cfg.Field, "numerator.expression") {
		t.Errorf("ConfigurationError.Field = %q; want it to contain %q", cfg.Field, "numerator.expression")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*qm.QualityMeasure)
		field  string
	}{
		{
			"missing id",
			func(m *qm.QualityMeasure) { m.ID = "" },
			"id",
		},
		{
			"negative age bound",
			func(m *qm.QualityMeasure) { m.Criteria.InitialPopulation.Demographics.AgeMin = intPtr(-1) },
			"age_min",
		},
		{
			"inverted age bounds",
			func(m *qm.QualityMeasure) {
				m.Criteria.InitialPopulation.Demographics.AgeMin = intPtr(70)
				m.Criteria.InitialPopulation.Demographics.AgeMax = intPtr(60)
			},
			"demographics",
		},
		{
			"unknown timeframe type",
			func(m *qm.QualityMeasure) {
				m.Criteria.InitialPopulation.Timeframe = &qm.Timeframe{Type: "quarterly"}
			},
			"timeframe.type",
		},
		{
			"negative rolling lookback",
			func(m *qm.QualityMeasure) {
				m.Criteria.InitialPopulation.Timeframe = &qm.Timeframe{Type: qm.TimeframeRolling, Lookback: -30}
			},
			"timeframe.lookback",
		},
		{
			"negative exclusion timeframe",
			func(m *qm.QualityMeasure) { m.Criteria.DenominatorExclusions.Timeframe = -1 },
			"denominator_exclusions.timeframe",
		},
		{
			"empty numerator",
			func(m *qm.QualityMeasure) { m.Criteria.Numerator = qm.NumeratorCriteria{} },
			"numerator",
		},
		{
			"negative numerator window",
			func(m *qm.QualityMeasure) { m.Criteria.Numerator.Timeframe.After = -7 },
			"numerator.timeframe",
		},
		{
			"invalid comparator",
			func(m *qm.QualityMeasure) { m.Criteria.Numerator.Results[0].Comparator = "!=" },
			"comparator",
		},
		{
			"non-numeric result value",
			func(m *qm.QualityMeasure) { m.Criteria.Numerator.Results[0].Value = "normal" },
			"value",
		},
		{
			"malformed expression",
			func(m *qm.QualityMeasure) { m.Criteria.Numerator.Expression = "gender = =" },
			"expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := controlledBPMeasure()
			tt.mutate(&m)

			_, err := New(m, nil)
			var cfg *qm.ConfigurationError
			if !errors.As(err, &cfg) {
				t.Fatalf("New() error = %v; want ConfigurationError", err)
			}
			if !strings.Contains(cfg.Field, tt.field) {
				t.Errorf("ConfigurationError.Field = %q; want it to contain %q", cfg.Field, tt.field)
			}
		})
	}
}

func TestNewConflictingValueSet(t *testing.T) {
	m := controlledBPMeasure()
	m.ValueSets = append(m.ValueSets, qm.ValueSet{
		OID:  oidHypertension,
		Name: "Essential Hypertension",
		Concepts: []qm.ValueSetConcept{
			{System: systemICD10, Code: "I11.9"}, // disagrees with the earlier definition
		},
	})

	_, err := New(m, nil)
	var cfg *qm.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("New() error = %v; want ConfigurationError for conflicting value sets", err)
	}
}

func TestEngineMetrics(t *testing.T) {
	e := newEngine(t, controlledBPMeasure())
	period := qm.CalendarYear(2024)

	e.Evaluate(context.Background(), compliantPatient(), period)

	uncontrolled := compliantPatient()
	uncontrolled.ID = "p2"
	uncontrolled.Observations[0].Value = 152
	e.Evaluate(context.Background(), uncontrolled, period)

	m := e.Metrics()
	if got := m.EvaluationsTotal(); got != 2 {
		t.Errorf("EvaluationsTotal() = %d; want 2", got)
	}
	if got := m.QualifiedTotal(); got != 1 {
		t.Errorf("QualifiedTotal() = %d; want 1", got)
	}
	stats, ok := m.StageStats(StageNumerator)
	if !ok || stats.Invocations != 2 {
		t.Errorf("numerator stage stats = %+v, %v; want 2 invocations", stats, ok)
	}
}
