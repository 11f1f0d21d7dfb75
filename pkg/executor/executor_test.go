package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

var testSchema = flowrecord.NewSchema([]flowrecord.FieldDefinition{
	{Name: "id", Type: flowrecord.TypeInt},
	{Name: "val", Type: flowrecord.TypeString},
}, 0)

// countingSource emits n inserts then terminates.
type countingSource struct {
	n int
}

func (s *countingSource) OutputPorts() []dag.PortHandle { return []dag.PortHandle{0} }

func (s *countingSource) OutputSchema(dag.PortHandle) (flowrecord.Schema, error) {
	return testSchema, nil
}

func (s *countingSource) Start(fwd dag.SourceForwarder, fromSeq *flowrecord.SeqNo) error {
	start := uint64(0)
	if fromSeq != nil {
		start = fromSeq.Seq + 1
	}
	for i := start; i < start+uint64(s.n); i++ {
		rec := flowrecord.NewRecord(flowrecord.NewInt(int64(i)), flowrecord.NewString("row"))
		if err := fwd.Send(flowrecord.SeqNo{Seq: i}, flowrecord.Insert(rec), 0); err != nil {
			return err
		}
	}
	fwd.Terminate()
	return nil
}

// passthroughProcessor forwards every op unchanged from port 0 to port 0.
type passthroughProcessor struct{}

func (p *passthroughProcessor) UpdateSchema(_ dag.PortHandle, inputs map[dag.PortHandle]flowrecord.Schema) (flowrecord.Schema, error) {
	return inputs[0], nil
}
func (p *passthroughProcessor) Init(*storage.Env) error { return nil }
func (p *passthroughProcessor) Process(_ dag.PortHandle, op flowrecord.Operation, fwd dag.Forwarder, _ *storage.SharedTransaction, _ dag.Readers) error {
	return fwd.Send(op, 0)
}
func (p *passthroughProcessor) Commit(uint64, *storage.SharedTransaction) error { return nil }

// captureSink records every operation it receives.
type captureSink struct {
	mu      sync.Mutex
	ops     []flowrecord.Operation
	commits []uint64
}

func (s *captureSink) UpdateSchema(map[dag.PortHandle]flowrecord.Schema) error { return nil }
func (s *captureSink) Init(*storage.Env) error                                { return nil }
func (s *captureSink) Process(_ dag.PortHandle, _ flowrecord.SeqNo, op flowrecord.Operation, _ *storage.SharedTransaction, _ dag.Readers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
	return nil
}
func (s *captureSink) Commit(epoch uint64, _ *storage.SharedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, epoch)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

func buildPipeline(t *testing.T, src *countingSource, sink *captureSink) *dag.Graph {
	t.Helper()
	g := dag.NewGraph()
	require.NoError(t, g.AddSource("src", src, []dag.PortDef{{Handle: 0}}))
	require.NoError(t, g.AddProcessor("proc", &passthroughProcessor{}, []dag.PortDef{{Handle: 0}}, []dag.PortDef{{Handle: 0}}))
	require.NoError(t, g.AddSink("sink", sink, []dag.PortDef{{Handle: 0}}))
	require.NoError(t, g.AddEdge(dag.Edge{From: dag.Endpoint{Node: "src", Port: 0}, To: dag.Endpoint{Node: "proc", Port: 0}}))
	require.NoError(t, g.AddEdge(dag.Edge{From: dag.Endpoint{Node: "proc", Port: 0}, To: dag.Endpoint{Node: "sink", Port: 0}}))
	return g
}

func TestExecutorDeliversEveryRecordAndCommitsEpoch(t *testing.T) {
	env, err := storage.OpenEnv(t.TempDir())
	require.NoError(t, err)
	defer env.Close()

	src := &countingSource{n: 5}
	sink := &captureSink{}
	g := buildPipeline(t, src, sink)

	exec, err := NewExecutor(g, env, Config{ChannelCapacity: 8, EpochInterval: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, exec.Start())

	require.Eventually(t, func() bool { return sink.count() == 5 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(sink.commits) > 0 }, 2*time.Second, 10*time.Millisecond)

	exec.Stop()
	require.NoError(t, exec.Wait())

	assert.Equal(t, flowrecord.OpInsert, sink.ops[0].Kind)
}

func TestExecutorRestartsFromCheckpoint(t *testing.T) {
	dataDir := t.TempDir()

	env, err := storage.OpenEnv(dataDir)
	require.NoError(t, err)

	src := &countingSource{n: 3}
	sink := &captureSink{}
	g := buildPipeline(t, src, sink)

	exec, err := NewExecutor(g, env, Config{ChannelCapacity: 8, EpochInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, exec.Start())
	require.Eventually(t, func() bool { return sink.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return exec.CommittedEpoch() > 0 }, 2*time.Second, 10*time.Millisecond)
	exec.Stop()
	require.NoError(t, exec.Wait())
	require.NoError(t, env.Close())

	// Reopen the same environment and run a second executor over the same
	// source: it must resume after the checkpointed SeqNo instead of
	// replaying rows 0..2 again.
	env2, err := storage.OpenEnv(dataDir)
	require.NoError(t, err)
	defer env2.Close()

	src2 := &countingSource{n: 3}
	sink2 := &captureSink{}
	g2 := buildPipeline(t, src2, sink2)

	exec2, err := NewExecutor(g2, env2, Config{ChannelCapacity: 8, EpochInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, exec2.Start())
	require.Eventually(t, func() bool { return sink2.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	exec2.Stop()
	require.NoError(t, exec2.Wait())

	first := sink2.ops[0].New.Values[0]
	id, ok := first.AsFloat()
	require.True(t, ok)
	assert.Equal(t, float64(3), id)
}
