package executor

import (
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// Getter is satisfied by a Processor (or Sink) that keeps a materialized,
// point-lookup-able copy of its output — adapter.CacheSink implements it so
// other nodes can probe the sink's current state by primary key.
type Getter interface {
	Get(port dag.PortHandle, key []byte) (flowrecord.Record, bool, error)
}

// readers implements dag.Readers by dispatching to whichever node's
// Processor/Sink also implements Getter.
type readers struct {
	graph *dag.Graph
}

func (r *readers) Get(node dag.NodeHandle, port dag.PortHandle, key []byte) (flowrecord.Record, bool, error) {
	n, err := r.graph.Node(node)
	if err != nil {
		return flowrecord.Record{}, false, flowerr.Wrap(flowerr.InvalidNodeHandle, "readers lookup", err)
	}

	var g Getter
	switch n.Kind {
	case dag.KindProcessor:
		g, _ = n.Processor.(Getter)
	case dag.KindSink:
		g, _ = n.Sink.(Getter)
	}
	if g == nil {
		return flowrecord.Record{}, false, flowerr.Newf(flowerr.InvalidNodeHandle, "node %s does not expose materialized reads", node)
	}
	return g.Get(port, key)
}
