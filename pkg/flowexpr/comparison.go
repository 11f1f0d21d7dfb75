package flowexpr

import (
	"strings"

	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// binary holds the two operands shared by every comparison node.
type binary struct {
	Left  Expression
	Right Expression
}

func (b binary) evalPair(r flowrecord.Record) (flowrecord.Field, flowrecord.Field, error) {
	l, err := b.Left.Eval(r)
	if err != nil {
		return flowrecord.Field{}, flowrecord.Field{}, err
	}
	rt, err := b.Right.Eval(r)
	if err != nil {
		return flowrecord.Field{}, flowrecord.Field{}, err
	}
	return l, rt, nil
}

// nullCollapse implements the null-handling rule shared by every comparison
// operator: if either side is null the whole comparison collapses to
// true-iff-both-null, regardless of which operator is being evaluated, per
// comparison.rs's Field::Null match arm (hit identically by every operator
// the macro and evaluate_lt/evaluate_gt generate).
func nullCollapse(l, r flowrecord.Field) (flowrecord.Field, bool) {
	if l.IsNull() || r.IsNull() {
		return flowrecord.NewBool(l.IsNull() && r.IsNull()), true
	}
	return flowrecord.Field{}, false
}

func isNumeric(t flowrecord.FieldType) bool {
	switch t {
	case flowrecord.TypeInt, flowrecord.TypeUInt, flowrecord.TypeFloat, flowrecord.TypeDecimal:
		return true
	default:
		return false
	}
}

func boolOrder(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	default:
		return 0
	}
}

// Compare orders l and r, reporting ok=false when the two fields' types
// cannot be compared (matching comparison.rs's InvalidOperandType arms).
// Exported for reuse by the aggregation operator's MIN/MAX bag ordering.
func Compare(l, r flowrecord.Field) (int, bool) {
	switch {
	case l.Type == flowrecord.TypeBool && r.Type == flowrecord.TypeBool:
		return boolOrder(l.Bool) - boolOrder(r.Bool), true
	case isNumeric(l.Type) && isNumeric(r.Type):
		lf, _ := l.AsFloat()
		rf, _ := r.AsFloat()
		return sign(lf - rf), true
	case l.Type == flowrecord.TypeString && r.Type == flowrecord.TypeString:
		return strings.Compare(l.String, r.String), true
	case l.Type == flowrecord.TypeTimestamp && r.Type == flowrecord.TypeTimestamp,
		l.Type == flowrecord.TypeDate && r.Type == flowrecord.TypeDate:
		switch {
		case l.Time.Before(r.Time):
			return -1, true
		case l.Time.After(r.Time):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

func evalCompare(op string, b binary, r flowrecord.Record, match func(order int) bool) (flowrecord.Field, error) {
	l, rt, err := b.evalPair(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	if collapsed, isNull := nullCollapse(l, rt); isNull {
		return collapsed, nil
	}
	order, ok := Compare(l, rt)
	if !ok {
		return flowrecord.Field{}, flowerr.Newf(flowerr.InternalTypeError, "invalid operand types for %s: %s vs %s", op, l.Type, rt.Type)
	}
	return flowrecord.NewBool(match(order)), nil
}

// Eq is the "=" comparison.
type Eq struct{ Left, Right Expression }

func (e Eq) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare("=", binary{e.Left, e.Right}, r, func(o int) bool { return o == 0 })
}

// Ne is the "!=" comparison.
type Ne struct{ Left, Right Expression }

func (e Ne) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare("!=", binary{e.Left, e.Right}, r, func(o int) bool { return o != 0 })
}

// Lt is the "<" comparison.
type Lt struct{ Left, Right Expression }

func (e Lt) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare("<", binary{e.Left, e.Right}, r, func(o int) bool { return o < 0 })
}

// Gt is the ">" comparison.
type Gt struct{ Left, Right Expression }

func (e Gt) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare(">", binary{e.Left, e.Right}, r, func(o int) bool { return o > 0 })
}

// Lte is the "<=" comparison.
type Lte struct{ Left, Right Expression }

func (e Lte) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare("<=", binary{e.Left, e.Right}, r, func(o int) bool { return o <= 0 })
}

// Gte is the ">=" comparison.
type Gte struct{ Left, Right Expression }

func (e Gte) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	return evalCompare(">=", binary{e.Left, e.Right}, r, func(o int) bool { return o >= 0 })
}
