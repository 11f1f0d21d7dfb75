package flowexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/flowdb/pkg/flowrecord"
)

var emptyRecord = flowrecord.NewRecord()

func evalBool(t *testing.T, e Expression) bool {
	t.Helper()
	f, err := e.Eval(emptyRecord)
	assert.NoError(t, err)
	assert.Equal(t, flowrecord.TypeBool, f.Type)
	return f.Bool
}

func TestEqFloatFloat(t *testing.T) {
	e := Eq{Literal{flowrecord.NewFloat(1.3)}, Literal{flowrecord.NewFloat(1.3)}}
	assert.True(t, evalBool(t, e))
}

func TestEqFloatNull(t *testing.T) {
	e := Eq{Literal{flowrecord.NewFloat(1.3)}, Literal{flowrecord.Null()}}
	assert.False(t, evalBool(t, e))
}

func TestEqFloatInt(t *testing.T) {
	e := Eq{Literal{flowrecord.NewFloat(1.0)}, Literal{flowrecord.NewInt(1)}}
	assert.True(t, evalBool(t, e))
}

func TestEqNullNull(t *testing.T) {
	e := Eq{Literal{flowrecord.Null()}, Literal{flowrecord.Null()}}
	assert.True(t, evalBool(t, e))
}

func TestNeNullNull(t *testing.T) {
	// Ne collapses the same way Eq does: both-null is "true" regardless of
	// operator, per comparison.rs's shared Field::Null match arm.
	e := Ne{Literal{flowrecord.Null()}, Literal{flowrecord.Null()}}
	assert.True(t, evalBool(t, e))
}

func TestEqStringString(t *testing.T) {
	e := Eq{Literal{flowrecord.NewString("abc")}, Literal{flowrecord.NewString("abc")}}
	assert.True(t, evalBool(t, e))
}

func TestEqStringNull(t *testing.T) {
	e := Eq{Literal{flowrecord.NewString("abc")}, Literal{flowrecord.Null()}}
	assert.False(t, evalBool(t, e))
}

func TestLtIntFloat(t *testing.T) {
	e := Lt{Literal{flowrecord.NewInt(1)}, Literal{flowrecord.NewFloat(1.5)}}
	assert.True(t, evalBool(t, e))
}

func TestGtIntInt(t *testing.T) {
	e := Gt{Literal{flowrecord.NewInt(2)}, Literal{flowrecord.NewInt(1)}}
	assert.True(t, evalBool(t, e))
}

func TestEqInvalidOperandTypes(t *testing.T) {
	e := Eq{Literal{flowrecord.NewString("abc")}, Literal{flowrecord.NewInt(1)}}
	_, err := e.Eval(emptyRecord)
	assert.Error(t, err)
}

func TestColumnOutOfRangeIsNull(t *testing.T) {
	c := Column{Index: 5}
	f, err := c.Eval(flowrecord.NewRecord(flowrecord.NewInt(1)))
	assert.NoError(t, err)
	assert.True(t, f.IsNull())
}

func TestAndOrNot(t *testing.T) {
	tru := Literal{flowrecord.NewBool(true)}
	fls := Literal{flowrecord.NewBool(false)}
	assert.True(t, evalBool(t, And{tru, tru}))
	assert.False(t, evalBool(t, And{tru, fls}))
	assert.True(t, evalBool(t, Or{fls, tru}))
	assert.True(t, evalBool(t, Not{fls}))
	// Null collapses to false, so Not(Null) is true.
	assert.True(t, evalBool(t, Not{Literal{flowrecord.Null()}}))
}

func TestDivByZeroIsNull(t *testing.T) {
	d := Div{Literal{flowrecord.NewFloat(4)}, Literal{flowrecord.NewFloat(0)}}
	f, err := d.Eval(emptyRecord)
	assert.NoError(t, err)
	assert.True(t, f.IsNull())
}
