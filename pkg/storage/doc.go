/*
Package storage provides the embedded transactional key-value environment
underneath every flowdb operator.

flowdb uses go.etcd.io/bbolt for embedded, transactional storage with zero
external dependencies, the same choice the teacher makes for cluster state:

	┌──────────────────── FLOWDB STORAGE ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │                  Env                         │          │
	│  │  - File: <dataDir>/flowdb.db                 │          │
	│  │  - One bucket per named database             │          │
	│  │  - Transactions: ACID, single-writer          │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │             SharedTransaction                  │          │
	│  │  - Exclusive write txn for one epoch           │          │
	│  │  - Handed to exactly one processor at a time   │          │
	│  │    by the executor                             │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │               PrefixTxn                        │          │
	│  │  - 4-byte prefix scoping a shared database      │          │
	│  │    to one aggregator instance's private state   │          │
	│  └────────────────────────────────────────────────┘          │
	└─────────────────────────────────────────────────────────────┘

Named databases used by the bundled operators: aggr (values_db), aggr_data
(agg_db, per-measure private state via PrefixTxn), meta (meta_db, prefix
counters) and aggregation_count (count_db) for aggregation; product_idx_<port>
and product_rec_<port> (join index and record store, one pair per input
port, with no single "product" database) for the product operator; and
checkpoint for the executor's per-source restart positions. Any underlying I/O error surfaces as a wrapped error tagged
flowerr.InternalDatabaseError by the calling operator, which aborts the
enclosing epoch per the error-handling design.
*/
package storage
