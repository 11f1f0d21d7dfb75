package dag

import (
	"fmt"

	"github.com/cuemby/flowdb/pkg/flowerr"
)

// Graph is the directed-acyclic wiring of sources, processors, and sinks
// for one pipeline.
type Graph struct {
	nodes map[NodeHandle]*Node
	edges []Edge
	// adjacency for cycle detection and topological walks
	out map[NodeHandle][]NodeHandle
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[NodeHandle]*Node),
		out:   make(map[NodeHandle][]NodeHandle),
	}
}

// AddSource registers a source node.
func (g *Graph) AddSource(handle NodeHandle, src Source, outputs []PortDef) error {
	if _, exists := g.nodes[handle]; exists {
		return flowerr.Newf(flowerr.InvalidNodeHandle, "node %s already exists", handle)
	}
	g.nodes[handle] = &Node{Handle: handle, Kind: KindSource, Source: src, OutputPorts: outputs}
	return nil
}

// AddProcessor registers a processor node.
func (g *Graph) AddProcessor(handle NodeHandle, proc Processor, inputs, outputs []PortDef) error {
	if _, exists := g.nodes[handle]; exists {
		return flowerr.Newf(flowerr.InvalidNodeHandle, "node %s already exists", handle)
	}
	g.nodes[handle] = &Node{Handle: handle, Kind: KindProcessor, Processor: proc, InputPorts: inputs, OutputPorts: outputs}
	return nil
}

// AddSink registers a sink node.
func (g *Graph) AddSink(handle NodeHandle, sink Sink, inputs []PortDef) error {
	if _, exists := g.nodes[handle]; exists {
		return flowerr.Newf(flowerr.InvalidNodeHandle, "node %s already exists", handle)
	}
	g.nodes[handle] = &Node{Handle: handle, Kind: KindSink, Sink: sink, InputPorts: inputs}
	return nil
}

// AddEdge wires an output port to an input port. It fails with WouldCycle
// if the edge would introduce a cycle, with InvalidNodeHandle/
// InvalidPortHandle if either endpoint is undeclared, and with
// DuplicateInput if the destination input port already has an incoming
// edge (spec requires exactly one incoming edge per declared input port).
func (g *Graph) AddEdge(e Edge) error {
	fromNode, ok := g.nodes[e.From.Node]
	if !ok {
		return flowerr.Newf(flowerr.InvalidNodeHandle, "unknown source node %s", e.From.Node)
	}
	toNode, ok := g.nodes[e.To.Node]
	if !ok {
		return flowerr.Newf(flowerr.InvalidNodeHandle, "unknown destination node %s", e.To.Node)
	}
	if !hasPort(fromNode.OutputPorts, e.From.Port) {
		return flowerr.Newf(flowerr.InvalidPortHandle, "node %s has no output port %d", e.From.Node, e.From.Port)
	}
	if !hasPort(toNode.InputPorts, e.To.Port) {
		return flowerr.Newf(flowerr.InvalidPortHandle, "node %s has no input port %d", e.To.Node, e.To.Port)
	}
	for _, existing := range g.edges {
		if existing.To == e.To {
			return flowerr.Newf(flowerr.DuplicateInput, "node %s port %d already has an incoming edge", e.To.Node, e.To.Port)
		}
	}

	if g.reachable(e.To.Node, e.From.Node) {
		return flowerr.New(flowerr.WouldCycle)
	}

	g.edges = append(g.edges, e)
	g.out[e.From.Node] = append(g.out[e.From.Node], e.To.Node)
	return nil
}

func hasPort(defs []PortDef, p PortHandle) bool {
	for _, d := range defs {
		if d.Handle == p {
			return true
		}
	}
	return false
}

// reachable reports whether to is reachable from from via existing edges
// (used to detect that adding to->from would close a cycle back to to).
func (g *Graph) reachable(from, to NodeHandle) bool {
	if from == to {
		return true
	}
	visited := make(map[NodeHandle]bool)
	var dfs func(n NodeHandle) bool
	dfs = func(n NodeHandle) bool {
		if n == to {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, next := range g.out[n] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// Validate checks that every declared input port has exactly one incoming
// edge.
func (g *Graph) Validate() error {
	incoming := make(map[Endpoint]int)
	for _, e := range g.edges {
		incoming[e.To]++
	}
	for _, n := range g.nodes {
		if n.Kind == KindSource {
			continue
		}
		for _, def := range n.InputPorts {
			ep := Endpoint{Node: n.Handle, Port: def.Handle}
			if incoming[ep] == 0 {
				return flowerr.Newf(flowerr.MissingInput, "node %s port %d has no incoming edge", n.Handle, def.Handle)
			}
		}
	}
	return nil
}

// TopoOrder returns nodes in topological order (sources first). It assumes
// Validate has already succeeded (the graph is acyclic).
func (g *Graph) TopoOrder() []*Node {
	indegree := make(map[NodeHandle]int)
	for h := range g.nodes {
		indegree[h] = 0
	}
	for _, e := range g.edges {
		indegree[e.To.Node]++
	}

	var queue []NodeHandle
	for h, d := range indegree {
		if d == 0 {
			queue = append(queue, h)
		}
	}

	var order []*Node
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		order = append(order, g.nodes[h])
		for _, next := range g.out[h] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

// Edges returns every edge in the graph, in the order they were added.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesInto returns the edges terminating at node.
func (g *Graph) EdgesInto(node NodeHandle) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To.Node == node {
			out = append(out, e)
		}
	}
	return out
}

// EdgesFrom returns the edges originating at node.
func (g *Graph) EdgesFrom(node NodeHandle) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From.Node == node {
			out = append(out, e)
		}
	}
	return out
}

// Node looks up a node by handle.
func (g *Graph) Node(h NodeHandle) (*Node, error) {
	n, ok := g.nodes[h]
	if !ok {
		return nil, fmt.Errorf("dag: unknown node %s", h)
	}
	return n, nil
}

// Nodes returns every node in the graph, in insertion-independent
// (unordered) form; callers that need determinism should use TopoOrder.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}
