// Package dag builds the directed-acyclic pipeline graph: nodes
// (Source/Processor/Sink factories), typed ports, and the edges wiring
// output ports to input ports. AddEdge rejects anything that would close a
// cycle; Validate requires every declared input port to have exactly one
// incoming edge; PropagateSchemas walks the graph in topological order and
// threads each node's computed output schema into its downstream
// consumers' UpdateSchema calls before execution starts.
package dag
