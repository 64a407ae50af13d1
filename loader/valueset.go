package loader

import (
	"fmt"
	"strings"

	"github.com/gofhir/fhir/r4"

	qm "github.com/gofhir/measures"
)

// R4Converter converts R4 FHIR terminology resources into engine model
// types.
type R4Converter struct{}

// NewR4Converter creates a new R4 converter.
func NewR4Converter() *R4Converter {
	return &R4Converter{}
}

// ConvertValueSet converts an r4.ValueSet into a registry value set.
// The OID is taken from the first urn:oid identifier, falling back to the
// canonical URL. Expansion concepts are preferred; compose includes are
// used when no expansion is present.
func (c *R4Converter) ConvertValueSet(vs *r4.ValueSet) (qm.ValueSet, error) {
	if vs == nil {
		return qm.ValueSet{}, fmt.Errorf("valueset is nil")
	}

	oid := c.extractOID(vs)
	if oid == "" {
		return qm.ValueSet{}, fmt.Errorf("valueset %q has neither an oid identifier nor a url", derefString(vs.Name))
	}

	result := qm.ValueSet{
		ID:   derefString(vs.Id),
		OID:  oid,
		Name: derefString(vs.Name),
	}

	if vs.Expansion != nil {
		c.appendExpansion(vs.Expansion.Contains, &result)
	} else if vs.Compose != nil {
		c.appendCompose(vs.Compose, &result)
	}

	return result, nil
}

// extractOID finds the value set's OID identity.
func (c *R4Converter) extractOID(vs *r4.ValueSet) string {
	for i := range vs.Identifier {
		value := derefString(vs.Identifier[i].Value)
		if strings.HasPrefix(value, "urn:oid:") {
			return strings.TrimPrefix(value, "urn:oid:")
		}
	}
	return derefString(vs.Url)
}

// appendExpansion collects concepts from an expansion, recursing into
// nested contains entries.
func (c *R4Converter) appendExpansion(contains []r4.ValueSetExpansionContains, out *qm.ValueSet) {
	for i := range contains {
		entry := &contains[i]
		if entry.System != nil && entry.Code != nil {
			out.Concepts = append(out.Concepts, qm.ValueSetConcept{
				System:  *entry.System,
				Code:    *entry.Code,
				Display: derefString(entry.Display),
			})
		}
		c.appendExpansion(entry.Contains, out)
	}
}

// appendCompose collects explicitly enumerated concepts from compose
// includes. Filter-based includes cannot be expanded without a code
// system and are skipped.
func (c *R4Converter) appendCompose(compose *r4.ValueSetCompose, out *qm.ValueSet) {
	for i := range compose.Include {
		include := &compose.Include[i]
		if include.System == nil {
			continue
		}
		for j := range include.Concept {
			concept := &include.Concept[j]
			if concept.Code == nil {
				continue
			}
			out.Concepts = append(out.Concepts, qm.ValueSetConcept{
				System:  *include.System,
				Code:    *concept.Code,
				Display: derefString(concept.Display),
			})
		}
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
