// Package aggregation implements the GROUP BY relational operator: it
// maintains, per distinct group, the current value of every measure and
// emits the exact Insert/Update/Delete against the materialized group view
// for each input delta. Grounded field-for-field on
// original_source/dozer-sql/src/pipeline/aggregation/processor.rs — the
// group-hash/record-key scheme, the values/count/meta database split, the
// state-vector encoding, and the agg_insert/agg_delete/agg_update control
// flow all port directly from that file. Its sibling aggregator.rs (the
// individual COUNT/SUM/MIN/MAX/AVG implementations) was not present in the
// retrieval pack, so the five aggregators in aggregators.go are built from
// spec.md §4.G's aggregator contract and numeric-semantics rules instead.
package aggregation
