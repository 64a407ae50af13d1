// Package aggregate runs measure engines over patient cohorts and reduces
// per-patient qualifications into population analyses.
package aggregate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/engine"
	"github.com/gofhir/measures/pkg/logger"
	"github.com/gofhir/measures/worker"
)

// Aggregator evaluates a cohort against one measure and produces a
// MeasurePopulationAnalysis: eligibility counts, care gaps and a
// performance rate.
type Aggregator struct {
	engine  *engine.Engine
	options *qm.Options
	pool    *worker.CohortPool
}

// New creates an aggregator for the given engine. Options default to the
// engine's own options; overrides apply on top.
func New(eng *engine.Engine, opts ...qm.Option) *Aggregator {
	options := *eng.Options()
	for _, opt := range opts {
		opt(&options)
	}

	workers := options.WorkerCount
	if !options.ParallelCohort {
		workers = 1
	}

	return &Aggregator{
		engine:  eng,
		options: &options,
		pool:    worker.NewCohortPool(eng.Evaluate, workers),
	}
}

// RunCohort evaluates every patient independently and reduces the results.
// On cancellation the partial aggregate is discarded and ctx.Err() is
// returned; callers must not record trend entries for incomplete runs.
func (a *Aggregator) RunCohort(ctx context.Context, patients []*qm.PatientSnapshot, period qm.MeasurementPeriod) (*qm.MeasurePopulationAnalysis, error) {
	runID := uuid.NewString()
	measureID := a.engine.Measure().ID

	logger.Info("run %s: evaluating measure %s for %d patients over %s",
		runID, measureID, len(patients), period)

	batch := a.pool.EvaluateCohort(ctx, patients, period)

	if batch.Cancelled {
		if a.options.CollectMetrics {
			a.engine.Metrics().RecordCohort(true)
		}
		logger.Warn("run %s: cancelled after %d/%d evaluations; partial aggregate discarded",
			runID, batch.CompletedJobs, batch.TotalJobs)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	}

	partial := NewPartial()
	for _, result := range batch.Results {
		if result == nil {
			continue
		}
		if result.Err != nil {
			if a.options.CollectMetrics {
				a.engine.Metrics().RecordFailure()
			}
			if !a.options.ContinueOnFailure {
				return nil, fmt.Errorf("run %s: evaluation failed for patient %s: %w",
					runID, result.PatientID, result.Err)
			}
			logger.Warn("run %s: evaluation failed for patient %s: %v",
				runID, result.PatientID, result.Err)
			partial.AddFailure(result.PatientID, result.Err)
			continue
		}
		partial.Accumulate(result.Qualification)
	}

	analysis := partial.Finalize()
	analysis.RunID = runID
	analysis.MeasureID = measureID
	analysis.Period = period.Key()

	if a.options.CollectMetrics {
		a.engine.Metrics().RecordCohort(false)
	}
	logger.Info("run %s: eligible=%d excluded=%d compliant=%d performance=%.1f gaps=%d failures=%d",
		runID, analysis.Eligible, analysis.Excluded, analysis.Compliant,
		analysis.Performance, len(analysis.Gaps), len(analysis.Failures))

	return analysis, nil
}

// Engine returns the aggregator's engine.
func (a *Aggregator) Engine() *engine.Engine {
	return a.engine
}
