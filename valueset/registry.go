// Package valueset provides the value-set membership registry.
//
// The registry is write-once: value sets are loaded at engine start,
// the registry is sealed, and all evaluation-time lookups are lock-free
// reads. Unknown OIDs resolve to non-membership with a logged warning
// rather than an error (fail-closed); this is the only place unknown
// value-set references are handled.
package valueset

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/pkg/logger"
)

// DuplicateValueSetError reports an attempt to re-register an OID with
// different content. Re-registering identical content is a no-op.
type DuplicateValueSetError struct {
	OID string
}

// Error implements the error interface.
func (e *DuplicateValueSetError) Error() string {
	return fmt.Sprintf("value set %s is already registered with different content", e.OID)
}

// conceptKey identifies a concept within a value set.
type conceptKey struct {
	system string
	code   string
}

// valueSetData holds one registered value set with its membership index.
type valueSetData struct {
	oid      string
	name     string
	concepts map[conceptKey]string // key -> display
}

// Registry holds code-system/value-set membership tables keyed by OID.
// Load before Seal; after Seal, concurrent reads take no lock.
type Registry struct {
	mu        sync.RWMutex
	valueSets map[string]*valueSetData
	sealed    atomic.Bool

	// warned tracks OIDs already reported as unknown, one warning per OID
	warned sync.Map
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		valueSets: make(map[string]*valueSetData),
	}
}

// Load registers a value set by OID. Loading after Seal is rejected.
// Re-registering identical content is a no-op; conflicting content fails
// with a DuplicateValueSetError. Concepts are unique by (system, code)
// within a value set; duplicate concepts inside one value set collapse to
// a single entry.
func (r *Registry) Load(vs qm.ValueSet) error {
	if vs.OID == "" {
		return fmt.Errorf("value set %q has no oid", vs.Name)
	}
	if r.sealed.Load() {
		return fmt.Errorf("registry is sealed; value set %s cannot be loaded", vs.OID)
	}

	data := &valueSetData{
		oid:      vs.OID,
		name:     vs.Name,
		concepts: make(map[conceptKey]string, len(vs.Concepts)),
	}
	for _, c := range vs.Concepts {
		data.concepts[conceptKey{system: c.System, code: c.Code}] = c.Display
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.valueSets[vs.OID]; ok {
		if sameContent(existing, data) {
			return nil
		}
		return &DuplicateValueSetError{OID: vs.OID}
	}

	r.valueSets[vs.OID] = data
	return nil
}

// sameContent compares two value sets by name, concept membership and
// concept displays.
func sameContent(a, b *valueSetData) bool {
	if a.name != b.name || len(a.concepts) != len(b.concepts) {
		return false
	}
	for key, display := range a.concepts {
		if other, ok := b.concepts[key]; !ok || other != display {
			return false
		}
	}
	return true
}

// Seal freezes the registry. Subsequent Load calls fail; IsMember and Name
// read without locking.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Sealed returns true once the registry has been sealed.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// IsMember reports whether (system, code) belongs to the value set with the
// given OID. An unknown OID returns false and logs a warning once; it never
// returns an error.
func (r *Registry) IsMember(oid, system, code string) bool {
	data := r.lookup(oid)
	if data == nil {
		r.warnUnknown(oid)
		return false
	}
	_, ok := data.concepts[conceptKey{system: system, code: code}]
	return ok
}

// Contains reports whether the OID is registered.
func (r *Registry) Contains(oid string) bool {
	return r.lookup(oid) != nil
}

// Name returns the display name registered for the OID, or the OID itself
// when unknown. Used to label requirements and exclusion reasons.
func (r *Registry) Name(oid string) string {
	if data := r.lookup(oid); data != nil && data.name != "" {
		return data.name
	}
	return oid
}

// OIDs returns all registered OIDs in ascending order.
func (r *Registry) OIDs() []string {
	r.mu.RLock()
	oids := make([]string, 0, len(r.valueSets))
	for oid := range r.valueSets {
		oids = append(oids, oid)
	}
	r.mu.RUnlock()

	sort.Strings(oids)
	return oids
}

// Count returns the number of registered value sets.
func (r *Registry) Count() int {
	if r.sealed.Load() {
		return len(r.valueSets)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.valueSets)
}

// ConceptCount returns the number of concepts in the value set with the
// given OID, or 0 when unknown.
func (r *Registry) ConceptCount(oid string) int {
	if data := r.lookup(oid); data != nil {
		return len(data.concepts)
	}
	return 0
}

// lookup fetches value-set data, lock-free once sealed.
func (r *Registry) lookup(oid string) *valueSetData {
	if r.sealed.Load() {
		return r.valueSets[oid]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valueSets[oid]
}

// warnUnknown logs one warning per unknown OID.
func (r *Registry) warnUnknown(oid string) {
	if oid == "" {
		return
	}
	if _, loaded := r.warned.LoadOrStore(oid, struct{}{}); !loaded {
		logger.Warn("value set %s is not registered; treating membership as false", oid)
	}
}
