// Package executor runs a wired dag.Graph: one goroutine per node, a
// bounded channel.Chan per edge, and an epoch ticker that stamps barrier
// envelopes onto every source's output so commits happen in lockstep across
// the whole pipeline. Grounded on the teacher's pkg/worker/worker.go (one
// long-lived loop goroutine per concern, coordinated by a shared stopCh and
// sync.WaitGroup) and pkg/scheduler/scheduler.go's ticker-driven loop;
// checkpoint persistence is grounded on pkg/reconciler/reconciler.go's
// periodic reconcile-and-persist cycle, repurposed from desired-vs-actual
// container state to committed-vs-pending SeqNo per source.
package executor
