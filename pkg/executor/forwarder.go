package executor

import (
	"sync"

	"github.com/cuemby/flowdb/pkg/channel"
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// sourceForwarder is the dag.SourceForwarder handed to one Source.Start
// call. It piggybacks epoch barriers onto the source's own message stream:
// whenever the executor's epoch ticker has advanced pendingEpoch past what
// this source has already emitted, the next Send flushes a barrier to every
// output edge before the data message, so barriers and data never race on
// the same FIFO edge.
type sourceForwarder struct {
	executor *Executor
	node     dag.NodeHandle
	outputs  map[dag.PortHandle][]*channel.Chan

	emittedEpoch uint64
	lastSeq      flowrecord.SeqNo
	sent         bool
	once         sync.Once
}

func (f *sourceForwarder) Send(seq flowrecord.SeqNo, op flowrecord.Operation, port dag.PortHandle) error {
	if err := f.flushDueBarrier(); err != nil {
		return err
	}
	chans, ok := f.outputs[port]
	if !ok {
		return flowerr.Newf(flowerr.InvalidPortHandle, "source %s has no output port %d", f.node, port)
	}
	env := channel.Envelope{Seq: seq, Op: op, Epoch: f.emittedEpoch}
	for _, c := range chans {
		if err := c.Send(env); err != nil {
			return err
		}
	}
	f.lastSeq = seq
	f.sent = true
	return nil
}

// flushDueBarrier emits a barrier for the currently pending epoch if this
// source hasn't already emitted one for it.
func (f *sourceForwarder) flushDueBarrier() error {
	pending := f.executor.pendingEpoch.Load()
	if pending <= f.emittedEpoch {
		return nil
	}
	return f.emitBarrier(pending)
}

func (f *sourceForwarder) emitBarrier(epoch uint64) error {
	for _, chans := range f.outputs {
		for _, c := range chans {
			if err := c.Send(channel.Envelope{Barrier: true, Epoch: epoch}); err != nil {
				return err
			}
		}
	}
	f.emittedEpoch = epoch
	if f.sent {
		f.executor.recordSourceCheckpoint(f.node, f.lastSeq)
	}
	return nil
}

// Terminate flushes one final barrier (covering any data already sent under
// the current epoch) and closes every outbound edge, signaling downstream
// nodes to drain and disconnect.
func (f *sourceForwarder) Terminate() {
	f.once.Do(func() {
		_ = f.emitBarrier(f.emittedEpoch + 1)
		for _, chans := range f.outputs {
			for _, c := range chans {
				c.Close()
			}
		}
	})
}

// processorForwarder is the dag.Forwarder handed to one Process call; it
// stamps derived operations with the triggering envelope's seq and epoch so
// downstream checkpoints and barrier bookkeeping stay coherent.
//
// Send only buffers — it never touches a channel. Process runs under the
// executor's txMu, and a downstream node's only way to make progress is
// itself acquiring txMu; if Send blocked directly on a full output channel
// here, a Process call that emits more rows than the channel (plus fan-in)
// buffer depth can hold would deadlock against that same downstream node.
// flush() delivers the buffered operations after the caller has released
// txMu, so a blocked channel send no longer blocks anyone else's lock
// acquisition.
type processorForwarder struct {
	node    dag.NodeHandle
	outputs map[dag.PortHandle][]*channel.Chan
	seq     flowrecord.SeqNo
	epoch   uint64

	buffered []bufferedSend
}

type bufferedSend struct {
	op   flowrecord.Operation
	port dag.PortHandle
}

func (f *processorForwarder) Send(op flowrecord.Operation, port dag.PortHandle) error {
	if _, ok := f.outputs[port]; !ok {
		return flowerr.Newf(flowerr.InvalidPortHandle, "node %s has no output port %d", f.node, port)
	}
	f.buffered = append(f.buffered, bufferedSend{op: op, port: port})
	return nil
}

// flush delivers every operation buffered by Send, in call order, onto the
// real output channels. Call this only after releasing txMu.
func (f *processorForwarder) flush() error {
	for _, b := range f.buffered {
		env := channel.Envelope{Seq: f.seq, Op: b.op, Epoch: f.epoch}
		for _, c := range f.outputs[b.port] {
			if err := c.Send(env); err != nil {
				return err
			}
		}
	}
	return nil
}

func forwardBarrier(outputs map[dag.PortHandle][]*channel.Chan, epoch uint64) error {
	for _, chans := range outputs {
		for _, c := range chans {
			if err := c.Send(channel.Envelope{Barrier: true, Epoch: epoch}); err != nil {
				return err
			}
		}
	}
	return nil
}
