// Package flowexpr is the small expression evaluator shared by selection
// predicates, join keys, and aggregation measure arguments: an Expression
// interface with Column/Literal leaves and comparison/logical/arithmetic
// nodes. Grounded on
// original_source/dozer-sql/src/pipeline/expression/comparison.rs, ported
// from that file's per-variant Field match (a Rust enum dispatch) to Go
// interface dispatch, one struct per node kind.
package flowexpr
