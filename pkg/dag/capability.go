package dag

import (
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

// Forwarder is what a processor uses to emit derived operations downstream.
type Forwarder interface {
	Send(op flowrecord.Operation, port PortHandle) error
}

// SourceForwarder additionally carries the sequence number a source
// attaches to each message, and lets the source signal clean termination.
type SourceForwarder interface {
	Send(seq flowrecord.SeqNo, op flowrecord.Operation, port PortHandle) error
	Terminate()
}

// Readers lets a processor look up another node's materialized output by
// port, for point lookups into a node that keeps a materialization. None of
// the bundled operators reads through it; the product operator keeps its
// own record stores.
type Readers interface {
	Get(node NodeHandle, port PortHandle, key []byte) (flowrecord.Record, bool, error)
}

// Source produces the initial stream of operations for the pipeline.
type Source interface {
	OutputPorts() []PortHandle
	OutputSchema(port PortHandle) (flowrecord.Schema, error)
	Start(fwd SourceForwarder, fromSeq *flowrecord.SeqNo) error
}

// Processor is the capability set the executor requires of every
// operator (selection, product, aggregation, and any user-defined node).
type Processor interface {
	UpdateSchema(outputPort PortHandle, inputs map[PortHandle]flowrecord.Schema) (flowrecord.Schema, error)
	Init(env *storage.Env) error
	Process(fromPort PortHandle, op flowrecord.Operation, fwd Forwarder, tx *storage.SharedTransaction, readers Readers) error
	Commit(epoch uint64, tx *storage.SharedTransaction) error
}

// Sink is a terminal node that applies operations to an external system.
type Sink interface {
	UpdateSchema(inputs map[PortHandle]flowrecord.Schema) error
	Init(env *storage.Env) error
	Process(fromPort PortHandle, seq flowrecord.SeqNo, op flowrecord.Operation, tx *storage.SharedTransaction, readers Readers) error
	Commit(epoch uint64, tx *storage.SharedTransaction) error
}
