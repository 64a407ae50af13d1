// Package expression evaluates optional FHIRPath criteria expressions
// against a patient's raw FHIR resource.
//
// Measure numerators may carry a FHIRPath expression alongside value-set
// references, the way real eCQM logic is expressed. Expressions are
// compiled once and cached; compile failures are configuration errors at
// engine construction, while evaluation failures degrade to a non-match.
package expression

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"
)

// Evaluator compiles and evaluates FHIRPath expressions with a bounded
// compiled-expression cache. Safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	cache    map[string]*fhirpath.Expression
	capacity int
}

// NewEvaluator creates an evaluator with the given cache capacity.
func NewEvaluator(capacity int) *Evaluator {
	if capacity <= 0 {
		capacity = 256
	}
	return &Evaluator{
		cache:    make(map[string]*fhirpath.Expression, capacity),
		capacity: capacity,
	}
}

// Compile parses an expression and caches the compiled form. Used at engine
// construction so malformed expressions fail before any evaluation runs.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.getOrCompile(expr)
	return err
}

// Evaluate evaluates an expression against a resource. The result follows
// FHIRPath truthiness rules: an empty collection is false, a single boolean
// is itself, and any other non-empty collection is true.
func (e *Evaluator) Evaluate(expr string, resource any) (bool, error) {
	resourceBytes, err := toJSON(resource)
	if err != nil {
		return false, fmt.Errorf("failed to convert resource to JSON: %w", err)
	}

	compiled, err := e.getOrCompile(expr)
	if err != nil {
		return false, fmt.Errorf("failed to compile expression %q: %w", expr, err)
	}

	result, err := compiled.Evaluate(resourceBytes)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", expr, err)
	}

	return toBool(result), nil
}

// getOrCompile returns a cached compiled expression or compiles a new one.
func (e *Evaluator) getOrCompile(expr string) (*fhirpath.Expression, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := fhirpath.Compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	// Evict everything when full; compiled expressions are cheap to rebuild
	// and measures reference a handful of expressions at most.
	if len(e.cache) >= e.capacity {
		e.cache = make(map[string]*fhirpath.Expression, e.capacity)
	}
	e.cache[expr] = compiled
	e.mu.Unlock()

	return compiled, nil
}

// CacheSize returns the number of cached compiled expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// toJSON converts a resource to JSON bytes.
func toJSON(resource any) ([]byte, error) {
	switch v := resource.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// toBool converts a FHIRPath result collection to a boolean.
func toBool(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}
	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}
	return true
}
