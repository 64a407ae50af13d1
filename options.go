package measures

import "runtime"

// Option configures the engine and aggregator.
type Option func(*Options)

// Options holds all configuration for evaluation and aggregation.
type Options struct {
	// Evaluation flags
	EvaluateExpressions bool
	StrictMode          bool

	// Cohort execution
	WorkerCount       int
	ParallelCohort    bool
	ContinueOnFailure bool

	// Metrics
	CollectMetrics bool

	// Expression cache
	ExpressionCacheSize int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		// Expression criteria require a raw FHIR resource on snapshots
		EvaluateExpressions: true,
		StrictMode:          false,

		WorkerCount:       runtime.NumCPU(),
		ParallelCohort:    true,
		ContinueOnFailure: true,

		CollectMetrics: true,

		ExpressionCacheSize: 256,
	}
}

// --- Evaluation Options ---

// WithExpressions enables or disables FHIRPath expression criteria.
// When disabled, expression clauses evaluate as vacuously satisfied.
func WithExpressions(enable bool) Option {
	return func(o *Options) {
		o.EvaluateExpressions = enable
	}
}

// WithStrictMode makes cohort runs abort on the first evaluation failure
// instead of isolating it. Intended for debugging measure definitions.
func WithStrictMode(enable bool) Option {
	return func(o *Options) {
		o.StrictMode = enable
		o.ContinueOnFailure = !enable
	}
}

// --- Cohort Options ---

// WithWorkerCount sets the number of workers for cohort evaluation.
// Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithParallelCohort enables parallel per-patient evaluation.
func WithParallelCohort(enable bool) Option {
	return func(o *Options) {
		o.ParallelCohort = enable
	}
}

// WithContinueOnFailure controls evaluation-failure isolation. When true
// (the default), one failing patient is reported separately and the rest of
// the cohort continues.
func WithContinueOnFailure(enable bool) Option {
	return func(o *Options) {
		o.ContinueOnFailure = enable
	}
}

// --- Metrics Options ---

// WithMetrics enables or disables metric collection.
func WithMetrics(enable bool) Option {
	return func(o *Options) {
		o.CollectMetrics = enable
	}
}

// WithExpressionCache sets the compiled-expression cache size.
func WithExpressionCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// --- Presets ---

// FastOptions returns options optimized for large scheduled cohort runs.
func FastOptions() []Option {
	return []Option{
		WithParallelCohort(true),
		WithContinueOnFailure(true),
		WithMetrics(false),
	}
}

// StrictOptions returns options for debugging measure definitions:
// sequential evaluation, fail on the first unexpected error.
func StrictOptions() []Option {
	return []Option{
		WithParallelCohort(false),
		WithStrictMode(true),
	}
}
