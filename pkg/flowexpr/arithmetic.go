package flowexpr

import (
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

func evalNumericPair(left, right Expression, r flowrecord.Record, op string) (float64, float64, bool, error) {
	l, err := left.Eval(r)
	if err != nil {
		return 0, 0, false, err
	}
	rt, err := right.Eval(r)
	if err != nil {
		return 0, 0, false, err
	}
	if l.IsNull() || rt.IsNull() {
		return 0, 0, true, nil
	}
	lf, ok := l.AsFloat()
	if !ok {
		return 0, 0, false, flowerr.Newf(flowerr.InternalTypeError, "%s: left operand %s is not numeric", op, l.Type)
	}
	rf, ok := rt.AsFloat()
	if !ok {
		return 0, 0, false, flowerr.Newf(flowerr.InternalTypeError, "%s: right operand %s is not numeric", op, rt.Type)
	}
	return lf, rf, false, nil
}

// Add evaluates left + right, promoting both operands to Float (the
// aggregation spec's Int/Float arithmetic promotion rule). Either side null
// yields null.
type Add struct{ Left, Right Expression }

func (a Add) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, rt, null, err := evalNumericPair(a.Left, a.Right, r, "+")
	if err != nil || null {
		return flowrecord.Null(), err
	}
	return flowrecord.NewFloat(l + rt), nil
}

// Sub evaluates left - right.
type Sub struct{ Left, Right Expression }

func (s Sub) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, rt, null, err := evalNumericPair(s.Left, s.Right, r, "-")
	if err != nil || null {
		return flowrecord.Null(), err
	}
	return flowrecord.NewFloat(l - rt), nil
}

// Mul evaluates left * right.
type Mul struct{ Left, Right Expression }

func (m Mul) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, rt, null, err := evalNumericPair(m.Left, m.Right, r, "*")
	if err != nil || null {
		return flowrecord.Null(), err
	}
	return flowrecord.NewFloat(l * rt), nil
}

// Div evaluates left / right. Division by zero yields null rather than an
// error, matching the aggregation operator's AVG-by-zero-count rule.
type Div struct{ Left, Right Expression }

func (d Div) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, rt, null, err := evalNumericPair(d.Left, d.Right, r, "/")
	if err != nil || null {
		return flowrecord.Null(), err
	}
	if rt == 0 {
		return flowrecord.Null(), nil
	}
	return flowrecord.NewFloat(l / rt), nil
}
