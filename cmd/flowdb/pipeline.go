package main

import (
	"fmt"

	"github.com/cuemby/flowdb/pkg/adapter"
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowconfig"
)

const (
	sourceNode dag.NodeHandle = "source"
	sinkNode   dag.NodeHandle = "sink"
	port0      dag.PortHandle = 0
)

// buildGraph wires the manifest's configured source directly to its
// configured sink. Inserting operator stages (selection/product/
// aggregation) between them is left to a caller embedding pkg/dag/
// pkg/operator directly — composing an ad-hoc query language on top of the
// operators is explicitly out of scope; the CLI only has to drive a
// configured adapter pipeline end to end.
func buildGraph(m *flowconfig.Manifest) (*dag.Graph, *adapter.CacheSink, error) {
	schema, err := m.Source.ToSchema()
	if err != nil {
		return nil, nil, err
	}

	if m.Source.Type != "replay" {
		return nil, nil, fmt.Errorf("flowdb: unsupported source type %q", m.Source.Type)
	}
	if m.Sink.Type != "cache" {
		return nil, nil, fmt.Errorf("flowdb: unsupported sink type %q", m.Sink.Type)
	}

	src := &adapter.ReplaySource{Path: m.Source.Path, Schema: schema}
	sink := adapter.NewCacheSink()

	g := dag.NewGraph()
	if err := g.AddSource(sourceNode, src, []dag.PortDef{{Handle: port0}}); err != nil {
		return nil, nil, err
	}
	if err := g.AddSink(sinkNode, sink, []dag.PortDef{{Handle: port0}}); err != nil {
		return nil, nil, err
	}
	if err := g.AddEdge(dag.Edge{
		From: dag.Endpoint{Node: sourceNode, Port: port0},
		To:   dag.Endpoint{Node: sinkNode, Port: port0},
	}); err != nil {
		return nil, nil, err
	}
	return g, sink, nil
}
