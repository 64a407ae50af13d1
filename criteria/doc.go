// Package criteria evaluates individual measure-criteria clauses against
// patient snapshots.
//
// Each evaluator handles one aspect of a measure's criteria:
//
//   - Demographics: age bounds and gender filters
//   - Coded: value-set membership of dated clinical events, with
//     rolling/annual timeframes and exclusion lookbacks
//   - Results: numeric comparator evaluation against the most recent
//     in-window observation of a named type
//
// Evaluators are pure and total. They never panic on malformed snapshots:
// missing or unusable fields evaluate to "no match" for the affected clause
// and are documented as warning Issues on the outcome. Unknown value-set
// references resolve to non-membership through the registry, which logs the
// warning.
package criteria
