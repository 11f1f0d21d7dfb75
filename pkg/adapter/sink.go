package adapter

import (
	"sync"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const cachePort dag.PortHandle = 0

// CacheSink applies a pipeline's output deltas to an in-process, primary-
// key-addressed cache. It stands in for a real downstream (a distributed
// cache, a search index, a materialized-view store) that is itself out of
// scope; only the dag.Sink contract and a point-lookup Getter (so the
// executor's Readers can serve queries against this sink's current state)
// are in scope. Grounded on the teacher's BoltStore CRUD methods
// (Create/Get/Delete keyed by an entity ID) but backed by a plain guarded
// map rather than bbolt, since persistence of the cache itself is not part
// of the contract being exercised here.
type CacheSink struct {
	mu     sync.RWMutex
	rows   map[string]flowrecord.Record
	schema flowrecord.Schema
}

// NewCacheSink returns an empty cache sink.
func NewCacheSink() *CacheSink {
	return &CacheSink{rows: make(map[string]flowrecord.Record)}
}

func (s *CacheSink) UpdateSchema(inputs map[dag.PortHandle]flowrecord.Schema) error {
	schema, ok := inputs[cachePort]
	if !ok {
		return flowerr.Newf(flowerr.IncompatibleSchemas, "adapter: cache sink missing input schema on port %d", cachePort)
	}
	s.schema = schema
	return nil
}

func (s *CacheSink) Init(*storage.Env) error { return nil }

func (s *CacheSink) Commit(uint64, *storage.SharedTransaction) error { return nil }

func (s *CacheSink) Process(fromPort dag.PortHandle, _ flowrecord.SeqNo, op flowrecord.Operation, _ *storage.SharedTransaction, _ dag.Readers) error {
	if fromPort != cachePort {
		return flowerr.Newf(flowerr.InvalidPortHandle, "adapter: cache sink has no input port %d", fromPort)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op.Kind {
	case flowrecord.OpInsert:
		s.rows[string(flowrecord.PrimaryKey(s.schema, op.New))] = op.New
	case flowrecord.OpDelete:
		delete(s.rows, string(flowrecord.PrimaryKey(s.schema, op.Old)))
	case flowrecord.OpUpdate:
		oldKey := string(flowrecord.PrimaryKey(s.schema, op.Old))
		newKey := string(flowrecord.PrimaryKey(s.schema, op.New))
		if oldKey != newKey {
			delete(s.rows, oldKey)
		}
		s.rows[newKey] = op.New
	default:
		return flowerr.Newf(flowerr.InternalError, "adapter: unknown operation kind %v", op.Kind)
	}
	return nil
}

// Get implements executor.Getter so other nodes (or tests) can point-query
// this sink's current materialized state by primary key.
func (s *CacheSink) Get(port dag.PortHandle, key []byte) (flowrecord.Record, bool, error) {
	if port != cachePort {
		return flowrecord.Record{}, false, flowerr.Newf(flowerr.InvalidPortHandle, "adapter: cache sink has no port %d", port)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[string(key)]
	return rec, ok, nil
}

// Len returns the number of rows currently cached, primarily for tests.
func (s *CacheSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
