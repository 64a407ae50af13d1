// Package trend stores per-period performance snapshots for longitudinal
// measure reporting.
package trend

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	qm "github.com/gofhir/measures"
)

// Tracker stores performance snapshots keyed by (measure, period).
// Recording the same period again overwrites the previous value
// (last-write-wins); a period never appears twice in a trend. Safe for
// concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]float64 // measure -> period -> performance
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		snapshots: make(map[string]map[string]float64),
	}
}

// RecordSnapshot upserts the performance for (measure, period).
func (t *Tracker) RecordSnapshot(measureID, period string, performance float64) {
	if measureID == "" || period == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	periods, ok := t.snapshots[measureID]
	if !ok {
		periods = make(map[string]float64)
		t.snapshots[measureID] = periods
	}
	periods[period] = performance
}

// RecordAnalysis records a completed population analysis. Incomplete
// (cancelled) runs never reach here: the aggregator discards them.
func (t *Tracker) RecordAnalysis(analysis *qm.MeasurePopulationAnalysis) {
	if analysis == nil {
		return
	}
	t.RecordSnapshot(analysis.MeasureID, analysis.Period, analysis.Performance)
}

// Trend returns the most recent lastN entries for the measure, ascending
// by period. lastN <= 0 returns the full series. The returned slice is a
// copy; callers may re-read or retain it freely.
func (t *Tracker) Trend(measureID string, lastN int) []qm.TrendPoint {
	t.mu.RLock()
	periods := t.snapshots[measureID]
	points := make([]qm.TrendPoint, 0, len(periods))
	for period, performance := range periods {
		points = append(points, qm.TrendPoint{Period: period, Performance: performance})
	}
	t.mu.RUnlock()

	sort.Slice(points, func(i, j int) bool {
		return points[i].Period < points[j].Period
	})

	if lastN > 0 && len(points) > lastN {
		points = points[len(points)-lastN:]
	}
	return points
}

// Measures returns the ids of all measures with recorded snapshots,
// ascending.
func (t *Tracker) Measures() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.snapshots))
	for id := range t.snapshots {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Count returns the number of snapshots recorded for a measure.
func (t *Tracker) Count(measureID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.snapshots[measureID])
}

// --- Persistence ---

// Save writes all snapshots to a JSON file so trend entries survive
// restarts.
func (t *Tracker) Save(path string) error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t.snapshots, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode trend snapshots: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trend snapshots: %w", err)
	}
	return nil
}

// Load reads snapshots from a JSON file, merging them under the same
// last-write-wins rule: entries in the file overwrite in-memory entries
// for the same (measure, period).
func (t *Tracker) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read trend snapshots: %w", err)
	}

	var loaded map[string]map[string]float64
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to decode trend snapshots: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for measureID, periods := range loaded {
		existing, ok := t.snapshots[measureID]
		if !ok {
			existing = make(map[string]float64, len(periods))
			t.snapshots[measureID] = existing
		}
		for period, performance := range periods {
			existing[period] = performance
		}
	}
	return nil
}
