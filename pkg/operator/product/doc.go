// Package product implements the FROM … JOIN relational operator: an
// incrementally maintained n-ary equi-join (or cartesian product when no
// join key is configured). Grounded on
// original_source/dozer-sql/src/pipeline/product/processor.rs for the
// processor shape (persistent per-port join index, delta-driven emission,
// index updated after emission) — the retrieval pack's copy of that file's
// sibling join.rs (the actual index-scan/combine logic) was not available,
// so the scan/combine/emit algorithm below follows spec.md §4.F directly,
// generalized from its binary-join description to the n-ary case by taking
// the cartesian product of every peer port's matches (see DESIGN.md).
package product
