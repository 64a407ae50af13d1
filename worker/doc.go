// Package worker provides a worker pool for parallel cohort evaluation.
//
// Per-patient evaluation is a pure function of (measure, registry,
// snapshot), so patients are dispatched across workers with no locking
// during evaluation. A panic while evaluating one patient is recovered at
// the worker boundary and reported as that job's error; the rest of the
// cohort continues uninterrupted.
//
// Example usage:
//
//	pool := worker.NewCohortPool(eng.Evaluate, 4)
//	batch := pool.EvaluateCohort(ctx, patients, period)
//	for _, result := range batch.Results {
//	    if result.Err != nil {
//	        // evaluation failed for this patient
//	    }
//	}
package worker
