package executor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/flowdb/pkg/channel"
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowevents"
	"github.com/cuemby/flowdb/pkg/flowlog"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

// Config tunes the executor's channel buffering and epoch cadence.
type Config struct {
	// ChannelCapacity is the buffer depth of every edge channel.
	ChannelCapacity int
	// EpochInterval is how often the executor advances the pending epoch,
	// triggering the next barrier pass once a source has a message to send.
	EpochInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 64
	}
	if c.EpochInterval <= 0 {
		c.EpochInterval = 200 * time.Millisecond
	}
	return c
}

// Executor runs one wired graph: a goroutine per node moving operations
// over bounded channels, a shared single-writer transaction per epoch, and
// an epoch ticker coordinating barrier passes across every source.
type Executor struct {
	graph  *dag.Graph
	env    *storage.Env
	cfg    Config
	events *flowevents.Broker
	logger zerolog.Logger

	// runID identifies this particular Start/Stop lifetime in logs, distinct
	// from the durable checkpointed SeqNo — restarting the same manifest
	// against the same storage path gets a fresh runID every time.
	runID string

	outputs  map[dag.NodeHandle]map[dag.PortHandle][]*channel.Chan
	inputs   map[dag.NodeHandle]map[dag.PortHandle]*channel.Chan
	allChans []*channel.Chan
	readers  *readers

	pendingEpoch   atomic.Uint64
	committedEpoch atomic.Uint64

	checkpointDB storage.DbHandle
	checkpointMu sync.Mutex
	checkpoints  map[dag.NodeHandle]flowrecord.SeqNo

	tx   *storage.SharedTransaction
	txMu sync.Mutex

	totalSinks  int
	commitMu    sync.Mutex
	sinkCommits map[uint64]int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	errCh   chan error
	errOnce sync.Once
}

// NewExecutor prepares an executor for graph, opening the checkpoint
// database on env. Call Start to validate schemas and begin running.
func NewExecutor(graph *dag.Graph, env *storage.Env, cfg Config, events *flowevents.Broker) (*Executor, error) {
	checkpointDB, err := openCheckpointDB(env)
	if err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	e := &Executor{
		graph:        graph,
		env:          env,
		cfg:          cfg.withDefaults(),
		events:       events,
		runID:        runID,
		logger:       flowlog.WithComponent("executor").With().Str("run_id", runID).Logger(),
		outputs:      make(map[dag.NodeHandle]map[dag.PortHandle][]*channel.Chan),
		inputs:       make(map[dag.NodeHandle]map[dag.PortHandle]*channel.Chan),
		checkpointDB: checkpointDB,
		checkpoints:  make(map[dag.NodeHandle]flowrecord.SeqNo),
		sinkCommits:  make(map[uint64]int),
		stopCh:       make(chan struct{}),
		errCh:        make(chan error, 1),
	}
	e.readers = &readers{graph: graph}
	e.pendingEpoch.Store(1)
	return e, nil
}

// Start validates the graph, propagates schemas, wires every edge to a
// bounded channel, initializes every processor/sink against the storage
// environment, and spawns one goroutine per node plus the epoch ticker.
func (e *Executor) Start() error {
	if err := dag.PropagateSchemas(e.graph); err != nil {
		return err
	}

	for _, edge := range e.graph.Edges() {
		ch := channel.New(e.cfg.ChannelCapacity)
		if e.outputs[edge.From.Node] == nil {
			e.outputs[edge.From.Node] = make(map[dag.PortHandle][]*channel.Chan)
		}
		e.outputs[edge.From.Node][edge.From.Port] = append(e.outputs[edge.From.Node][edge.From.Port], ch)
		if e.inputs[edge.To.Node] == nil {
			e.inputs[edge.To.Node] = make(map[dag.PortHandle]*channel.Chan)
		}
		e.inputs[edge.To.Node][edge.To.Port] = ch
		e.allChans = append(e.allChans, ch)
	}

	for _, n := range e.graph.Nodes() {
		switch n.Kind {
		case dag.KindProcessor:
			if err := n.Processor.Init(e.env); err != nil {
				return flowerr.Wrap(flowerr.InternalError, "init processor "+string(n.Handle), err)
			}
		case dag.KindSink:
			if err := n.Sink.Init(e.env); err != nil {
				return flowerr.Wrap(flowerr.InternalError, "init sink "+string(n.Handle), err)
			}
			e.totalSinks++
		}
	}

	tx, err := e.env.BeginShared()
	if err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "begin first epoch", err)
	}
	e.tx = tx

	e.logger.Info().Int("nodes", len(e.graph.Nodes())).Msg("pipeline starting")

	for _, n := range e.graph.Nodes() {
		n := n
		e.wg.Add(1)
		switch n.Kind {
		case dag.KindSource:
			go e.runSource(n)
		case dag.KindProcessor:
			go e.runProcessor(n)
		case dag.KindSink:
			go e.runSink(n)
		}
	}

	e.wg.Add(1)
	go e.runEpochTicker()

	return nil
}

// Stop signals every node goroutine to drain and exit. It also closes every
// edge channel so a goroutine parked in Chan.Recv (which only watches its
// own channel, not the executor's stopCh) unblocks instead of leaking.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		for _, ch := range e.allChans {
			ch.Close()
		}
	})
}

// Wait blocks until every goroutine has exited and returns the first fatal
// error encountered, if any.
func (e *Executor) Wait() error {
	e.wg.Wait()
	select {
	case err := <-e.errCh:
		return err
	default:
		return nil
	}
}

func (e *Executor) runEpochTicker() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.EpochInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.pendingEpoch.Add(1)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Executor) fail(err error) {
	select {
	case <-e.stopCh:
		if errors.Is(err, channel.ErrDisconnected) {
			return
		}
	default:
	}
	e.errOnce.Do(func() {
		e.errCh <- err
		e.logger.Error().Err(err).Msg("pipeline aborted")
		if e.events != nil {
			e.events.Publish(&flowevents.Event{Kind: flowevents.PipelineFailed, Message: err.Error()})
		}
		e.Stop()
	})
}

func (e *Executor) recordSourceCheckpoint(node dag.NodeHandle, seq flowrecord.SeqNo) {
	e.checkpointMu.Lock()
	defer e.checkpointMu.Unlock()
	e.checkpoints[node] = seq
}

// recordSinkCommit counts one more sink having committed epoch, finalizing
// the epoch (committing the shared transaction and persisting checkpoints)
// once every sink has committed it.
func (e *Executor) recordSinkCommit(epoch uint64) {
	e.commitMu.Lock()
	e.sinkCommits[epoch]++
	done := e.sinkCommits[epoch] >= e.totalSinks
	if done {
		delete(e.sinkCommits, epoch)
	}
	e.commitMu.Unlock()

	if done {
		e.finalizeEpoch(epoch)
	}
}

// finalizeEpoch commits the epoch's shared transaction (with every pending
// source checkpoint written into it atomically), then opens the next one.
func (e *Executor) finalizeEpoch(epoch uint64) {
	e.txMu.Lock()
	defer e.txMu.Unlock()

	e.checkpointMu.Lock()
	for node, seq := range e.checkpoints {
		if err := saveCheckpoint(e.tx, e.checkpointDB, node, seq); err != nil {
			e.checkpointMu.Unlock()
			e.fail(flowerr.Wrap(flowerr.InternalDatabaseError, "save checkpoint", err))
			return
		}
	}
	e.checkpointMu.Unlock()

	if err := e.tx.Commit(); err != nil {
		e.fail(flowerr.Wrap(flowerr.InternalDatabaseError, "commit epoch", err))
		return
	}
	e.committedEpoch.Store(epoch)

	tx, err := e.env.BeginShared()
	if err != nil {
		e.fail(flowerr.Wrap(flowerr.InternalDatabaseError, "begin next epoch", err))
		return
	}
	e.tx = tx

	e.logger.Debug().Uint64("epoch", epoch).Msg("epoch committed")
	if e.events != nil {
		e.events.Publish(&flowevents.Event{Kind: flowevents.EpochCommitted, Epoch: epoch})
	}
}

// CommittedEpoch returns the highest epoch that has fully committed across
// every sink.
func (e *Executor) CommittedEpoch() uint64 {
	return e.committedEpoch.Load()
}

// RunID returns the identifier generated for this executor's lifetime, for
// correlating logs and metrics from a single run.
func (e *Executor) RunID() string {
	return e.runID
}

func closeAll(outputs map[dag.PortHandle][]*channel.Chan) {
	for _, chans := range outputs {
		for _, c := range chans {
			c.Close()
		}
	}
}
