// Package selection implements the WHERE relational operator: it evaluates
// a predicate against each incoming delta and forwards, rewrites, or drops
// the operation depending on whether the old and/or new record satisfies it.
// Grounded on original_source/dozer-sql/src/pipeline/selection/processor.rs,
// ported truth-table for truth-table.
package selection
