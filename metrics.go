package measures

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks evaluation performance using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Evaluation counts
	evaluationsTotal atomic.Uint64
	qualifiedTotal   atomic.Uint64
	excludedTotal    atomic.Uint64
	failuresTotal    atomic.Uint64

	// Timing (stored as nanoseconds)
	evalTimeTotal atomic.Uint64
	evalTimeMin   atomic.Uint64
	evalTimeMax   atomic.Uint64

	// Cohort counts
	cohortRuns      atomic.Uint64
	cohortCancelled atomic.Uint64

	// Issue counts by severity
	warningsTotal atomic.Uint64

	// Per-stage timing
	stageTiming sync.Map // map[string]*stageMetrics
}

// stageMetrics tracks metrics for a single evaluation stage.
type stageMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	matches     atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.evalTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordEvaluation records one completed per-patient evaluation.
func (m *Metrics) RecordEvaluation(duration time.Duration, q *MeasureQualification) {
	m.evaluationsTotal.Add(1)
	if q != nil {
		if q.Qualifies {
			m.qualifiedTotal.Add(1)
		}
		if q.Disposition == DispositionExcluded {
			m.excludedTotal.Add(1)
		}
		for _, issue := range q.Issues {
			if issue.IsWarning() {
				m.warningsTotal.Add(1)
			}
		}
	}

	ns := uint64(duration.Nanoseconds())
	m.evalTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.evalTimeMin.Load()
		if ns >= old {
			break
		}
		if m.evalTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.evalTimeMax.Load()
		if ns <= old {
			break
		}
		if m.evalTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordFailure records one unexpected evaluation failure.
func (m *Metrics) RecordFailure() {
	m.failuresTotal.Add(1)
}

// RecordCohort records one completed cohort run.
func (m *Metrics) RecordCohort(cancelled bool) {
	m.cohortRuns.Add(1)
	if cancelled {
		m.cohortCancelled.Add(1)
	}
}

// RecordStage records timing for one evaluation stage.
func (m *Metrics) RecordStage(stage string, duration time.Duration, matched bool) {
	sm := m.getOrCreateStageMetrics(stage)
	sm.invocations.Add(1)
	sm.totalTime.Add(uint64(duration.Nanoseconds()))
	if matched {
		sm.matches.Add(1)
	}
}

func (m *Metrics) getOrCreateStageMetrics(name string) *stageMetrics {
	if v, ok := m.stageTiming.Load(name); ok {
		return v.(*stageMetrics)
	}
	sm := &stageMetrics{}
	actual, _ := m.stageTiming.LoadOrStore(name, sm)
	return actual.(*stageMetrics)
}

// --- Query Methods ---

// EvaluationsTotal returns the total number of evaluations performed.
func (m *Metrics) EvaluationsTotal() uint64 {
	return m.evaluationsTotal.Load()
}

// QualifiedTotal returns the number of numerator-qualified evaluations.
func (m *Metrics) QualifiedTotal() uint64 {
	return m.qualifiedTotal.Load()
}

// ExcludedTotal returns the number of excluded evaluations.
func (m *Metrics) ExcludedTotal() uint64 {
	return m.excludedTotal.Load()
}

// FailuresTotal returns the number of unexpected evaluation failures.
func (m *Metrics) FailuresTotal() uint64 {
	return m.failuresTotal.Load()
}

// WarningsTotal returns the total warning issues recorded.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// CohortRuns returns the number of cohort runs recorded.
func (m *Metrics) CohortRuns() uint64 {
	return m.cohortRuns.Load()
}

// QualificationRate returns the fraction of evaluations that qualified
// (0.0 to 1.0).
func (m *Metrics) QualificationRate() float64 {
	total := m.evaluationsTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.qualifiedTotal.Load()) / float64(total)
}

// AverageEvaluationTime returns the average per-patient evaluation duration.
func (m *Metrics) AverageEvaluationTime() time.Duration {
	total := m.evaluationsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.evalTimeTotal.Load() / total)
}

// MinEvaluationTime returns the minimum evaluation duration.
func (m *Metrics) MinEvaluationTime() time.Duration {
	minVal := m.evalTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal)
}

// MaxEvaluationTime returns the maximum evaluation duration.
func (m *Metrics) MaxEvaluationTime() time.Duration {
	return time.Duration(m.evalTimeMax.Load())
}

// StageStats holds statistics for a single evaluation stage.
type StageStats struct {
	Name        string
	Invocations uint64
	TotalTime   time.Duration
	AvgTime     time.Duration
	Matches     uint64
}

// StageStats returns statistics for a specific stage.
func (m *Metrics) StageStats(stage string) (StageStats, bool) {
	v, ok := m.stageTiming.Load(stage)
	if !ok {
		return StageStats{Name: stage}, false
	}
	sm := v.(*stageMetrics)
	invocations := sm.invocations.Load()
	totalTime := sm.totalTime.Load()

	var avgTime time.Duration
	if invocations > 0 {
		avgTime = time.Duration(totalTime / invocations)
	}

	return StageStats{
		Name:        stage,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime),
		AvgTime:     avgTime,
		Matches:     sm.matches.Load(),
	}, true
}

// AllStageStats returns statistics for all stages.
func (m *Metrics) AllStageStats() []StageStats {
	var stats []StageStats
	m.stageTiming.Range(func(key, value any) bool {
		sm := value.(*stageMetrics)
		invocations := sm.invocations.Load()
		totalTime := sm.totalTime.Load()

		var avgTime time.Duration
		if invocations > 0 {
			avgTime = time.Duration(totalTime / invocations)
		}

		stats = append(stats, StageStats{
			Name:        key.(string),
			Invocations: invocations,
			TotalTime:   time.Duration(totalTime),
			AvgTime:     avgTime,
			Matches:     sm.matches.Load(),
		})
		return true
	})
	return stats
}

// --- Export Methods ---

// MetricsSnapshot is a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	EvaluationsTotal  uint64  `json:"evaluations_total"`
	QualifiedTotal    uint64  `json:"qualified_total"`
	ExcludedTotal     uint64  `json:"excluded_total"`
	FailuresTotal     uint64  `json:"failures_total"`
	WarningsTotal     uint64  `json:"warnings_total"`
	QualificationRate float64 `json:"qualification_rate"`

	AvgEvalTimeNs uint64 `json:"avg_eval_time_ns"`
	MinEvalTimeNs uint64 `json:"min_eval_time_ns"`
	MaxEvalTimeNs uint64 `json:"max_eval_time_ns"`

	CohortRuns      uint64 `json:"cohort_runs"`
	CohortCancelled uint64 `json:"cohort_cancelled"`

	Stages []StageStats `json:"stages,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	total := m.evaluationsTotal.Load()

	var avg, rate float64
	if total > 0 {
		avg = float64(m.evalTimeTotal.Load()) / float64(total)
		rate = float64(m.qualifiedTotal.Load()) / float64(total)
	}

	minTime := m.evalTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	return MetricsSnapshot{
		Timestamp:         time.Now(),
		EvaluationsTotal:  total,
		QualifiedTotal:    m.qualifiedTotal.Load(),
		ExcludedTotal:     m.excludedTotal.Load(),
		FailuresTotal:     m.failuresTotal.Load(),
		WarningsTotal:     m.warningsTotal.Load(),
		QualificationRate: rate,
		AvgEvalTimeNs:     uint64(avg),
		MinEvalTimeNs:     minTime,
		MaxEvalTimeNs:     m.evalTimeMax.Load(),
		CohortRuns:        m.cohortRuns.Load(),
		CohortCancelled:   m.cohortCancelled.Load(),
		Stages:            m.AllStageStats(),
	}
}

// Export returns metrics as a map suitable for external systems.
func (m *Metrics) Export() map[string]interface{} {
	s := m.Snapshot()
	return map[string]interface{}{
		"evaluations_total":  s.EvaluationsTotal,
		"qualified_total":    s.QualifiedTotal,
		"excluded_total":     s.ExcludedTotal,
		"failures_total":     s.FailuresTotal,
		"warnings_total":     s.WarningsTotal,
		"qualification_rate": s.QualificationRate,
		"avg_eval_time_ns":   s.AvgEvalTimeNs,
		"min_eval_time_ns":   s.MinEvalTimeNs,
		"max_eval_time_ns":   s.MaxEvalTimeNs,
		"cohort_runs":        s.CohortRuns,
		"cohort_cancelled":   s.CohortCancelled,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.evaluationsTotal.Store(0)
	m.qualifiedTotal.Store(0)
	m.excludedTotal.Store(0)
	m.failuresTotal.Store(0)
	m.warningsTotal.Store(0)
	m.evalTimeTotal.Store(0)
	m.evalTimeMin.Store(^uint64(0))
	m.evalTimeMax.Store(0)
	m.cohortRuns.Store(0)
	m.cohortCancelled.Store(0)

	m.stageTiming.Range(func(key, _ any) bool {
		m.stageTiming.Delete(key)
		return true
	})
}
