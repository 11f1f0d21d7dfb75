package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowexpr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

type recordingForwarder struct {
	sent []flowrecord.Operation
}

func (f *recordingForwarder) Send(op flowrecord.Operation, _ dag.PortHandle) error {
	f.sent = append(f.sent, op)
	return nil
}

// salesSchema is (region string, amount float).
func salesSchema() flowrecord.Schema {
	return flowrecord.NewSchema([]flowrecord.FieldDefinition{
		{Name: "region", Type: flowrecord.TypeString},
		{Name: "amount", Type: flowrecord.TypeFloat, Nullable: true},
	})
}

// newGroupedProcessor builds `SELECT region, COUNT(*), SUM(amount) GROUP BY region`.
func newGroupedProcessor(t *testing.T) (*Processor, *storage.Env) {
	t.Helper()
	p := New([]FieldRule{
		Dimension{Expr: flowexpr.Column{Index: 0}, Included: true, Name: "region"},
		Measure{Expr: flowexpr.Literal{Value: flowrecord.NewBool(true)}, Aggregator: Count{All: true}, Name: "cnt"},
		Measure{Expr: flowexpr.Column{Index: 1}, Aggregator: Sum{}, Name: "total"},
	})
	_, err := p.UpdateSchema(0, map[dag.PortHandle]flowrecord.Schema{0: salesSchema()})
	require.NoError(t, err)

	env, err := storage.OpenEnv(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	require.NoError(t, p.Init(env))
	return p, env
}

func row(region string, amount float64) flowrecord.Record {
	return flowrecord.NewRecord(flowrecord.NewString(region), flowrecord.NewFloat(amount))
}

func TestFirstInsertIntoGroupEmitsInsert(t *testing.T) {
	p, env := newGroupedProcessor(t)
	tx, err := env.BeginShared()
	require.NoError(t, err)
	fwd := &recordingForwarder{}

	require.NoError(t, p.Process(0, flowrecord.Insert(row("east", 10)), fwd, tx, nil))
	require.NoError(t, tx.Commit())

	require.Len(t, fwd.sent, 1)
	out := fwd.sent[0]
	assert.Equal(t, flowrecord.OpInsert, out.Kind)
	assert.Equal(t, "east", out.New.Values[0].String)
	assert.Equal(t, int64(1), out.New.Values[1].Int)
	assert.Equal(t, 10.0, out.New.Values[2].Float)
}

func TestSecondInsertIntoGroupEmitsUpdate(t *testing.T) {
	p, env := newGroupedProcessor(t)

	tx1, err := env.BeginShared()
	require.NoError(t, err)
	fwd1 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Insert(row("east", 10)), fwd1, tx1, nil))
	require.NoError(t, tx1.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Insert(row("east", 5)), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 1)
	out := fwd2.sent[0]
	assert.Equal(t, flowrecord.OpUpdate, out.Kind)
	assert.Equal(t, int64(1), out.Old.Values[1].Int)
	assert.Equal(t, 10.0, out.Old.Values[2].Float)
	assert.Equal(t, int64(2), out.New.Values[1].Int)
	assert.Equal(t, 15.0, out.New.Values[2].Float)
}

func TestDeletingLastRowInGroupEmitsDelete(t *testing.T) {
	p, env := newGroupedProcessor(t)

	tx1, err := env.BeginShared()
	require.NoError(t, err)
	fwd1 := &recordingForwarder{}
	r := row("west", 7)
	require.NoError(t, p.Process(0, flowrecord.Insert(r), fwd1, tx1, nil))
	require.NoError(t, tx1.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Delete(r), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 1)
	assert.Equal(t, flowrecord.OpDelete, fwd2.sent[0].Kind)
}

func TestDeletingOneOfSeveralRowsEmitsUpdate(t *testing.T) {
	p, env := newGroupedProcessor(t)

	tx1, err := env.BeginShared()
	require.NoError(t, err)
	fwd1 := &recordingForwarder{}
	a := row("west", 7)
	b := row("west", 3)
	require.NoError(t, p.Process(0, flowrecord.Insert(a), fwd1, tx1, nil))
	require.NoError(t, p.Process(0, flowrecord.Insert(b), fwd1, tx1, nil))
	require.NoError(t, tx1.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Delete(a), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 1)
	out := fwd2.sent[0]
	assert.Equal(t, flowrecord.OpUpdate, out.Kind)
	assert.Equal(t, int64(1), out.New.Values[1].Int)
	assert.Equal(t, 3.0, out.New.Values[2].Float)
}

func TestUpdateChangingGroupKeyDecomposesToDeleteInsert(t *testing.T) {
	p, env := newGroupedProcessor(t)

	tx1, err := env.BeginShared()
	require.NoError(t, err)
	fwd1 := &recordingForwarder{}
	old := row("east", 10)
	require.NoError(t, p.Process(0, flowrecord.Insert(old), fwd1, tx1, nil))
	require.NoError(t, tx1.Commit())

	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	newRec := row("west", 10)
	require.NoError(t, p.Process(0, flowrecord.Update(old, newRec), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 2)
	assert.Equal(t, flowrecord.OpDelete, fwd2.sent[0].Kind)
	assert.Equal(t, flowrecord.OpInsert, fwd2.sent[1].Kind)
	assert.Equal(t, "west", fwd2.sent[1].New.Values[0].String)
}

// TestExcludedDimensionIsOmittedFromOutput covers GROUP BY an expression
// that isn't projected (Included: false): the group hash still keys on
// region, but the output row has only the measure columns.
func TestExcludedDimensionIsOmittedFromOutput(t *testing.T) {
	p := New([]FieldRule{
		Dimension{Expr: flowexpr.Column{Index: 0}, Included: false, Name: "region"},
		Measure{Expr: flowexpr.Literal{Value: flowrecord.NewBool(true)}, Aggregator: Count{All: true}, Name: "cnt"},
		Measure{Expr: flowexpr.Column{Index: 1}, Aggregator: Sum{}, Name: "total"},
	})
	schema, err := p.UpdateSchema(0, map[dag.PortHandle]flowrecord.Schema{0: salesSchema()})
	require.NoError(t, err)
	require.Len(t, schema.Fields, 2)
	assert.Equal(t, "cnt", schema.Fields[0].Name)
	assert.Equal(t, "total", schema.Fields[1].Name)

	env, err := storage.OpenEnv(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	require.NoError(t, p.Init(env))

	tx1, err := env.BeginShared()
	require.NoError(t, err)
	fwd1 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Insert(row("east", 10)), fwd1, tx1, nil))
	require.NoError(t, tx1.Commit())

	require.Len(t, fwd1.sent, 1)
	out := fwd1.sent[0].New
	require.Len(t, out.Values, 2)
	assert.Equal(t, int64(1), out.Values[0].Int)
	assert.Equal(t, 10.0, out.Values[1].Float)

	// A different region contributes to a distinct hidden group but must
	// not collide with "east" in the visible (measure-only) output.
	tx2, err := env.BeginShared()
	require.NoError(t, err)
	fwd2 := &recordingForwarder{}
	require.NoError(t, p.Process(0, flowrecord.Insert(row("west", 4)), fwd2, tx2, nil))
	require.NoError(t, tx2.Commit())

	require.Len(t, fwd2.sent, 1)
	assert.Equal(t, flowrecord.OpInsert, fwd2.sent[0].Kind)
}

func TestAvgDivideByZeroIsNullForEmptyGroup(t *testing.T) {
	avg := Avg{}
	v, _, err := avg.Delete(nil, nil, flowrecord.NewFloat(5))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestMinTracksExtremumAcrossDeletes(t *testing.T) {
	env, err := storage.OpenEnv(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	aggDB, err := env.OpenDatabase("agg_test", false)
	require.NoError(t, err)

	tx, err := env.BeginShared()
	require.NoError(t, err)
	ptx := storage.NewPrefixTxn(tx, aggDB, 1)

	min := NewMin()
	_, _, err = min.Insert(ptx, nil, flowrecord.NewInt(5))
	require.NoError(t, err)
	v, _, err := min.Insert(ptx, nil, flowrecord.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int)

	v, _, err = min.Delete(ptx, nil, flowrecord.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int)

	require.NoError(t, tx.Commit())
}
