// Package flowrecord defines the typed value model flowdb's operators
// compute over: Field, Schema, Record, Operation and SeqNo.
//
// Field encodes to a canonical, order-preserving byte representation used
// both for storage keys (group hashes, join keys) and for equality tests;
// Decode(Encode(f)) == f for every field. Schema carries the primary-key
// and indexed-column positions alongside the field vector. Operation is
// one of Insert/Delete/Update; Operation.Validate checks that an Update's
// Old and New share a primary key (the constructors do not call it) — callers that need to change a primary key must
// decompose into Delete+Insert themselves (the aggregation operator does
// this; see pkg/operator/aggregation).
package flowrecord
