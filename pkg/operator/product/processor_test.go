package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const (
	leftPort  dag.PortHandle = 0
	rightPort dag.PortHandle = 1
)

type recordingForwarder struct {
	sent []flowrecord.Operation
}

func (f *recordingForwarder) Send(op flowrecord.Operation, _ dag.PortHandle) error {
	f.sent = append(f.sent, op)
	return nil
}

func usersSchema() flowrecord.Schema {
	return flowrecord.NewSchema([]flowrecord.FieldDefinition{
		{Name: "id", Type: flowrecord.TypeInt},
		{Name: "name", Type: flowrecord.TypeString},
	}, 0)
}

func ordersSchema() flowrecord.Schema {
	return flowrecord.NewSchema([]flowrecord.FieldDefinition{
		{Name: "order_id", Type: flowrecord.TypeInt},
		{Name: "user_id", Type: flowrecord.TypeInt},
	}, 0)
}

func newJoinProcessor(t *testing.T) (*Processor, *storage.Env) {
	t.Helper()
	p := New([]Input{
		{Port: leftPort, Schema: usersSchema(), KeyColumns: []int{0}},
		{Port: rightPort, Schema: ordersSchema(), KeyColumns: []int{1}},
	})
	_, err := p.UpdateSchema(outputPort, map[dag.PortHandle]flowrecord.Schema{
		leftPort:  usersSchema(),
		rightPort: ordersSchema(),
	})
	require.NoError(t, err)

	env, err := storage.OpenEnv(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	require.NoError(t, p.Init(env))
	return p, env
}

func TestInsertLeftThenRightEmitsJoinedRowOnSecondInsert(t *testing.T) {
	p, env := newJoinProcessor(t)
	fwd := &recordingForwarder{}

	tx, err := env.BeginShared()
	require.NoError(t, err)

	user := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("ada"))
	require.NoError(t, p.Process(leftPort, flowrecord.Insert(user), fwd, tx, nil))
	assert.Empty(t, fwd.sent, "no matching order yet")

	order := flowrecord.NewRecord(flowrecord.NewInt(100), flowrecord.NewInt(1))
	require.NoError(t, p.Process(rightPort, flowrecord.Insert(order), fwd, tx, nil))

	require.NoError(t, tx.Commit())

	require.Len(t, fwd.sent, 1)
	joined := fwd.sent[0]
	assert.Equal(t, flowrecord.OpInsert, joined.Kind)
	assert.Equal(t, []flowrecord.Field{
		flowrecord.NewInt(1), flowrecord.NewString("ada"),
		flowrecord.NewInt(100), flowrecord.NewInt(1),
	}, joined.New.Values)
}

func TestDeleteLeftEmitsJoinedDelete(t *testing.T) {
	p, env := newJoinProcessor(t)

	tx, err := env.BeginShared()
	require.NoError(t, err)
	fwd := &recordingForwarder{}
	user := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("ada"))
	order := flowrecord.NewRecord(flowrecord.NewInt(100), flowrecord.NewInt(1))
	require.NoError(t, p.Process(leftPort, flowrecord.Insert(user), fwd, tx, nil))
	require.NoError(t, p.Process(rightPort, flowrecord.Insert(order), fwd, tx, nil))
	require.NoError(t, tx.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	require.NoError(t, p.Process(leftPort, flowrecord.Delete(user), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 1)
	assert.Equal(t, flowrecord.OpDelete, fwd2.sent[0].Kind)
}

func TestUpdateUnchangedKeyEmitsDeleteThenInsertPair(t *testing.T) {
	p, env := newJoinProcessor(t)

	tx, err := env.BeginShared()
	require.NoError(t, err)
	fwd := &recordingForwarder{}
	user := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("ada"))
	order := flowrecord.NewRecord(flowrecord.NewInt(100), flowrecord.NewInt(1))
	require.NoError(t, p.Process(leftPort, flowrecord.Insert(user), fwd, tx, nil))
	require.NoError(t, p.Process(rightPort, flowrecord.Insert(order), fwd, tx, nil))
	require.NoError(t, tx.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	newUser := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("ada lovelace"))
	require.NoError(t, p.Process(leftPort, flowrecord.Update(user, newUser), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 2)
	assert.Equal(t, flowrecord.OpDelete, fwd2.sent[0].Kind)
	assert.Equal(t, flowrecord.OpInsert, fwd2.sent[1].Kind)
	assert.Equal(t, "ada lovelace", fwd2.sent[1].New.Values[1].String)
}

func TestNoMatchEmitsNothing(t *testing.T) {
	p, env := newJoinProcessor(t)
	tx, err := env.BeginShared()
	require.NoError(t, err)
	fwd := &recordingForwarder{}

	order := flowrecord.NewRecord(flowrecord.NewInt(100), flowrecord.NewInt(42))
	require.NoError(t, p.Process(rightPort, flowrecord.Insert(order), fwd, tx, nil))
	require.NoError(t, tx.Commit())

	assert.Empty(t, fwd.sent)
}
