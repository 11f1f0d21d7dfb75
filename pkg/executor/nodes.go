package executor

import (
	"sync"

	"github.com/cuemby/flowdb/pkg/channel"
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowevents"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// portMsg is one envelope read off an input port, tagged with which port it
// arrived on so the processor/sink loop can track per-port barrier receipt.
type portMsg struct {
	port dag.PortHandle
	env  channel.Envelope
}

// fanIn merges every input channel of a processor/sink node into a single
// stream, closing the returned channel once every input has disconnected.
func fanIn(stopCh <-chan struct{}, capacity int, inputs map[dag.PortHandle]*channel.Chan) <-chan portMsg {
	out := make(chan portMsg, capacity)
	var wg sync.WaitGroup
	for port, ch := range inputs {
		wg.Add(1)
		go func(port dag.PortHandle, ch *channel.Chan) {
			defer wg.Done()
			for {
				env, err := ch.Recv()
				if err != nil {
					return
				}
				select {
				case out <- portMsg{port: port, env: env}:
				case <-stopCh:
					return
				}
			}
		}(port, ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (e *Executor) runSource(n *dag.Node) {
	defer e.wg.Done()
	logger := e.logger.With().Str("node", string(n.Handle)).Logger()

	fromSeq, ok, err := loadCheckpoint(e.env, e.checkpointDB, n.Handle)
	if err != nil {
		e.fail(flowerr.Wrap(flowerr.InternalDatabaseError, "load checkpoint for "+string(n.Handle), err))
		return
	}
	var fromSeqPtr *flowrecord.SeqNo
	if ok {
		fromSeqPtr = &fromSeq
	}

	fwd := &sourceForwarder{executor: e, node: n.Handle, outputs: e.outputs[n.Handle]}
	if e.events != nil {
		e.events.Publish(&flowevents.Event{Kind: flowevents.NodeStarted, Node: string(n.Handle)})
	}

	logger.Info().Msg("source starting")
	if err := n.Source.Start(fwd, fromSeqPtr); err != nil {
		e.fail(flowerr.Wrap(flowerr.InternalError, "source "+string(n.Handle), err))
		return
	}
	fwd.Terminate()

	logger.Info().Msg("source finished")
	if e.events != nil {
		e.events.Publish(&flowevents.Event{Kind: flowevents.NodeStopped, Node: string(n.Handle)})
	}
}

func (e *Executor) runProcessor(n *dag.Node) {
	defer e.wg.Done()
	logger := e.logger.With().Str("node", string(n.Handle)).Logger()

	inputs := e.inputs[n.Handle]
	outputs := e.outputs[n.Handle]
	merged := fanIn(e.stopCh, e.cfg.ChannelCapacity, inputs)
	barriersSeen := make(map[dag.PortHandle]bool)

	logger.Debug().Msg("processor starting")
	for {
		select {
		case pm, open := <-merged:
			if !open {
				closeAll(outputs)
				return
			}
			if pm.env.Barrier {
				barriersSeen[pm.port] = true
				if len(barriersSeen) < len(inputs) {
					continue
				}
				if err := e.commitProcessor(n, pm.env.Epoch); err != nil {
					e.fail(err)
					return
				}
				if err := forwardBarrier(outputs, pm.env.Epoch); err != nil {
					e.fail(err)
					return
				}
				barriersSeen = make(map[dag.PortHandle]bool)
				continue
			}

			fwd := &processorForwarder{node: n.Handle, outputs: outputs, seq: pm.env.Seq, epoch: pm.env.Epoch}
			if err := e.processOp(n, pm.port, pm.env.Op, fwd); err != nil {
				e.fail(err)
				return
			}

		case <-e.stopCh:
			return
		}
	}
}

func (e *Executor) runSink(n *dag.Node) {
	defer e.wg.Done()

	inputs := e.inputs[n.Handle]
	merged := fanIn(e.stopCh, e.cfg.ChannelCapacity, inputs)
	barriersSeen := make(map[dag.PortHandle]bool)

	for {
		select {
		case pm, open := <-merged:
			if !open {
				return
			}
			if pm.env.Barrier {
				barriersSeen[pm.port] = true
				if len(barriersSeen) < len(inputs) {
					continue
				}
				if err := e.commitSink(n, pm.env.Epoch); err != nil {
					e.fail(err)
					return
				}
				e.recordSinkCommit(pm.env.Epoch)
				barriersSeen = make(map[dag.PortHandle]bool)
				continue
			}

			e.txMu.Lock()
			err := n.Sink.Process(pm.port, pm.env.Seq, pm.env.Op, e.tx, e.readers)
			e.txMu.Unlock()
			if err != nil {
				e.fail(flowerr.Wrap(flowerr.InternalError, "sink "+string(n.Handle), err))
				return
			}

		case <-e.stopCh:
			return
		}
	}
}

// processOp runs one Process call under txMu, then flushes whatever it
// buffered onto the real output channels after releasing the lock — see
// processorForwarder's doc comment for why the flush can't happen while
// txMu is still held.
func (e *Executor) processOp(n *dag.Node, port dag.PortHandle, op flowrecord.Operation, fwd *processorForwarder) error {
	e.txMu.Lock()
	err := n.Processor.Process(port, op, fwd, e.tx, e.readers)
	e.txMu.Unlock()
	if err != nil {
		return flowerr.Wrap(flowerr.InternalError, "processor "+string(n.Handle), err)
	}
	return fwd.flush()
}

func (e *Executor) commitProcessor(n *dag.Node, epoch uint64) error {
	e.txMu.Lock()
	defer e.txMu.Unlock()
	if err := n.Processor.Commit(epoch, e.tx); err != nil {
		return flowerr.Wrap(flowerr.InternalError, "commit processor "+string(n.Handle), err)
	}
	return nil
}

func (e *Executor) commitSink(n *dag.Node, epoch uint64) error {
	e.txMu.Lock()
	defer e.txMu.Unlock()
	if err := n.Sink.Commit(epoch, e.tx); err != nil {
		return flowerr.Wrap(flowerr.InternalError, "commit sink "+string(n.Handle), err)
	}
	return nil
}
