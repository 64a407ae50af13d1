package measures

// MeasureDomain classifies a measure by clinical area.
type MeasureDomain string

// Supported measure domains.
const (
	DomainPreventive MeasureDomain = "preventive"
	DomainChronic    MeasureDomain = "chronic"
	DomainAcute      MeasureDomain = "acute"
	DomainSafety     MeasureDomain = "safety"
)

// String returns the domain string.
func (d MeasureDomain) String() string {
	return string(d)
}

// IsValid returns true if this is a supported measure domain.
func (d MeasureDomain) IsValid() bool {
	switch d {
	case DomainPreventive, DomainChronic, DomainAcute, DomainSafety:
		return true
	default:
		return false
	}
}

// MeasureType classifies what a measure quantifies.
type MeasureType string

// Supported measure types.
const (
	TypeProcess    MeasureType = "process"
	TypeOutcome    MeasureType = "outcome"
	TypeStructural MeasureType = "structural"
)

// String returns the type string.
func (t MeasureType) String() string {
	return string(t)
}

// IsValid returns true if this is a supported measure type.
func (t MeasureType) IsValid() bool {
	switch t {
	case TypeProcess, TypeOutcome, TypeStructural:
		return true
	default:
		return false
	}
}

// MeasureCategory identifies the measure program.
type MeasureCategory string

// Supported measure categories.
const (
	CategoryNQF    MeasureCategory = "NQF"
	CategoryECQM   MeasureCategory = "eCQM"
	CategoryUSPSTF MeasureCategory = "USPSTF"
)

// MeasureStatus is the lifecycle status of a measure definition.
type MeasureStatus string

// Supported measure statuses.
const (
	StatusActive  MeasureStatus = "active"
	StatusDraft   MeasureStatus = "draft"
	StatusRetired MeasureStatus = "retired"
)
