// Package flowlog provides structured logging for flowdb using zerolog,
// with component- and epoch-scoped child loggers (WithComponent, WithNode,
// WithEpoch) so every line from the executor's per-node goroutines carries
// enough context to reconstruct a pipeline run from logs alone.
package flowlog
