package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	qm "github.com/gofhir/measures"
)

// EvaluateFunc is the function signature for evaluating a single patient.
// engine.Engine.Evaluate satisfies it.
type EvaluateFunc func(ctx context.Context, patient *qm.PatientSnapshot, period qm.MeasurementPeriod) *qm.MeasureQualification

// CohortPool evaluates patient cohorts across a fixed number of workers.
type CohortPool struct {
	evaluate EvaluateFunc
	workers  int
}

// NewCohortPool creates a cohort pool. If workers <= 0, it defaults to
// runtime.NumCPU().
func NewCohortPool(evaluate EvaluateFunc, workers int) *CohortPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CohortPool{
		evaluate: evaluate,
		workers:  workers,
	}
}

// Workers returns the configured worker count.
func (p *CohortPool) Workers() int {
	return p.workers
}

// EvaluateCohort evaluates every patient in the cohort. Results preserve
// submission order regardless of completion order.
func (p *CohortPool) EvaluateCohort(ctx context.Context, patients []*qm.PatientSnapshot, period qm.MeasurementPeriod) *BatchResult {
	if len(patients) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	// Small cohorts don't benefit from parallelism.
	if len(patients) <= 2 || p.workers == 1 {
		return p.evaluateSequential(ctx, patients, period)
	}

	return p.evaluateParallel(ctx, patients, period)
}

func (p *CohortPool) evaluateSequential(ctx context.Context, patients []*qm.PatientSnapshot, period qm.MeasurementPeriod) *BatchResult {
	br := &BatchResult{
		Results:   make([]*JobResult, len(patients)),
		TotalJobs: len(patients),
	}

	for i, patient := range patients {
		select {
		case <-ctx.Done():
			br.Cancelled = true
			return br
		default:
		}

		result := p.evaluateOne(ctx, patient, period)
		br.Results[i] = result
		br.CompletedJobs++
		if result.Err != nil {
			br.FailedJobs++
		}
	}

	return br
}

func (p *CohortPool) evaluateParallel(ctx context.Context, patients []*qm.PatientSnapshot, period qm.MeasurementPeriod) *BatchResult {
	numWorkers := p.workers
	if numWorkers > len(patients) {
		numWorkers = len(patients)
	}

	jobs := make(chan indexedJob, len(patients))
	resultsChan := make(chan indexedResult, len(patients))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				resultsChan <- indexedResult{
					index:  job.index,
					result: p.evaluateOne(ctx, job.patient, period),
				}
			}
		}()
	}

	// Submit jobs; stop early on cancellation.
	go func() {
		defer close(jobs)
		for i, patient := range patients {
			select {
			case <-ctx.Done():
				return
			case jobs <- indexedJob{index: i, patient: patient}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	br := &BatchResult{
		Results:   make([]*JobResult, len(patients)),
		TotalJobs: len(patients),
	}
	for ir := range resultsChan {
		br.Results[ir.index] = ir.result
		br.CompletedJobs++
		if ir.result.Err != nil {
			br.FailedJobs++
		}
	}
	br.Cancelled = br.CompletedJobs < br.TotalJobs

	return br
}

// evaluateOne runs a single evaluation with panic isolation. This is the
// boundary where an unexpected failure in one patient's evaluation is
// converted into a per-job error instead of taking down the cohort run.
func (p *CohortPool) evaluateOne(ctx context.Context, patient *qm.PatientSnapshot, period qm.MeasurementPeriod) (result *JobResult) {
	start := time.Now()
	result = &JobResult{}
	if patient != nil {
		result.PatientID = patient.ID
	}

	defer func() {
		if r := recover(); r != nil {
			result.Qualification = nil
			result.Err = fmt.Errorf("evaluation panic: %v", r)
		}
		result.Duration = time.Since(start).Nanoseconds()
	}()

	result.Qualification = p.evaluate(ctx, patient, period)
	return result
}

type indexedJob struct {
	index   int
	patient *qm.PatientSnapshot
}

type indexedResult struct {
	index  int
	result *JobResult
}
