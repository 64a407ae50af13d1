package criteria

import (
	"time"

	qm "github.com/gofhir/measures"
)

// Demographics evaluates age and gender bounds against a patient as of the
// given date (normally the measurement-period end). Absent bounds always
// pass; present bounds are inclusive on both ends; gender is exact-match
// against the allowed set.
//
// A patient whose date of birth is missing cannot satisfy an age bound:
// the clause evaluates to false with a data warning.
func (e *Evaluator) Demographics(patient *qm.PatientSnapshot, d *qm.Demographics, asOf time.Time) (bool, []qm.Issue) {
	if d == nil {
		return true, nil
	}
	if patient == nil {
		return false, []qm.Issue{qm.DataWarning("initial-population", "nil patient snapshot")}
	}

	var issues []qm.Issue

	if d.AgeMin != nil || d.AgeMax != nil {
		age := patient.AgeAt(asOf)
		if age < 0 {
			issues = append(issues, qm.DataWarning("initial-population",
				"patient "+patient.ID+" has no usable date of birth; age bounds treated as unmet"))
			return false, issues
		}
		if d.AgeMin != nil && age < *d.AgeMin {
			return false, issues
		}
		if d.AgeMax != nil && age > *d.AgeMax {
			return false, issues
		}
	}

	if len(d.Gender) > 0 {
		if patient.Gender == "" {
			issues = append(issues, qm.DataWarning("initial-population",
				"patient "+patient.ID+" has no recorded gender; gender filter treated as unmet"))
			return false, issues
		}
		allowed := false
		for _, g := range d.Gender {
			if g == patient.Gender {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, issues
		}
	}

	return true, issues
}
