package dag

import (
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// PropagateSchemas walks the DAG in topological order, gathering each
// non-source node's input schemas from its upstream edges and calling
// UpdateSchema to compute its output schema. It fails fast with
// SchemaNotInitialized/IncompatibleSchemas before any node starts running,
// per the "configuration errors fail fast" design.
func PropagateSchemas(g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	for _, n := range g.TopoOrder() {
		switch n.Kind {
		case KindSource:
			n.schema = make(map[PortHandle]flowrecord.Schema)
			for _, port := range n.Source.OutputPorts() {
				s, err := n.Source.OutputSchema(port)
				if err != nil {
					return flowerr.Wrap(flowerr.SchemaNotInitialized, "source "+string(n.Handle), err)
				}
				n.schema[port] = s
			}

		case KindProcessor:
			inputs, err := gatherInputs(g, n)
			if err != nil {
				return err
			}
			n.schema = make(map[PortHandle]flowrecord.Schema)
			for _, outPort := range n.OutputPorts {
				s, err := n.Processor.UpdateSchema(outPort.Handle, inputs)
				if err != nil {
					return flowerr.Wrap(flowerr.IncompatibleSchemas, "processor "+string(n.Handle), err)
				}
				n.schema[outPort.Handle] = s
			}

		case KindSink:
			inputs, err := gatherInputs(g, n)
			if err != nil {
				return err
			}
			if err := n.Sink.UpdateSchema(inputs); err != nil {
				return flowerr.Wrap(flowerr.IncompatibleSchemas, "sink "+string(n.Handle), err)
			}
		}
	}
	return nil
}

func gatherInputs(g *Graph, n *Node) (map[PortHandle]flowrecord.Schema, error) {
	inputs := make(map[PortHandle]flowrecord.Schema)
	for _, e := range g.EdgesInto(n.Handle) {
		upstream, err := g.Node(e.From.Node)
		if err != nil {
			return nil, err
		}
		s, ok := upstream.schema[e.From.Port]
		if !ok {
			return nil, flowerr.Newf(flowerr.SchemaNotInitialized, "upstream node %s port %d has no schema yet", e.From.Node, e.From.Port)
		}
		inputs[e.To.Port] = s
	}
	return inputs, nil
}

// OutputSchema returns the schema a node produces on port, computed by a
// prior PropagateSchemas call.
func (n *Node) OutputSchema(port PortHandle) (flowrecord.Schema, bool) {
	s, ok := n.schema[port]
	return s, ok
}
