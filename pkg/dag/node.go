package dag

import "github.com/cuemby/flowdb/pkg/flowrecord"

// NodeHandle is a stringly identifier for a graph node, unique within one
// pipeline.
type NodeHandle string

// PortHandle is a small integer identifier local to a node.
type PortHandle int

// NodeKind tags what a node does.
type NodeKind int

const (
	KindSource NodeKind = iota
	KindProcessor
	KindSink
)

// PortDef declares one input or output port: whether the node keeps
// operator-local state on it, and whether its output keeps a materialized
// copy for downstream lookups (needed by join inputs, for instance).
type PortDef struct {
	Handle       PortHandle
	Stateful     bool
	Materialized bool
}

// Endpoint identifies one port on one node.
type Endpoint struct {
	Node NodeHandle
	Port PortHandle
}

// Edge connects one output port to one input port.
type Edge struct {
	From Endpoint
	To   Endpoint
}

// Node is one entry in the graph: its kind, declared ports, and the
// concrete capability object the executor will drive.
type Node struct {
	Handle      NodeHandle
	Kind        NodeKind
	InputPorts  []PortDef
	OutputPorts []PortDef

	Source    Source
	Processor Processor
	Sink      Sink

	schema map[PortHandle]flowrecord.Schema
}
