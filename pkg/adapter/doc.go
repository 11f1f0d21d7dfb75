// Package adapter holds the pipeline's external-facing edges: a Source that
// replays a change log into the dataflow and a Sink that lands the pipeline's
// output somewhere a caller can read it back. Both are intentionally thin —
// the connector protocol to a real upstream (CDC, blockchain, message bus) or
// downstream (a real cache cluster) is out of scope; only the dag.Source /
// dag.Sink contract each must satisfy is in scope. Grounded on the teacher's
// pkg/storage.BoltStore CRUD methods for the sink's get/put/delete shape, and
// on cmd/warren-migrate's bufio.Scanner-over-JSON-lines style for the source.
package adapter
