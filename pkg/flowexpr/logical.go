package flowexpr

import "github.com/cuemby/flowdb/pkg/flowrecord"

// asBool collapses null and non-boolean fields to false, matching the
// selection operator's three-valued-logic-collapses-to-false rule.
func asBool(f flowrecord.Field) bool {
	return f.Type == flowrecord.TypeBool && f.Bool
}

// And is boolean conjunction with null/non-bool operands collapsing to false.
type And struct{ Left, Right Expression }

func (a And) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, err := a.Left.Eval(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	rt, err := a.Right.Eval(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	return flowrecord.NewBool(asBool(l) && asBool(rt)), nil
}

// Or is boolean disjunction with null/non-bool operands collapsing to false.
type Or struct{ Left, Right Expression }

func (o Or) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	l, err := o.Left.Eval(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	rt, err := o.Right.Eval(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	return flowrecord.NewBool(asBool(l) || asBool(rt)), nil
}

// Not is boolean negation; a null or non-bool operand collapses to false,
// so Not(Null) evaluates to true.
type Not struct{ Operand Expression }

func (n Not) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	v, err := n.Operand.Eval(r)
	if err != nil {
		return flowrecord.Field{}, err
	}
	return flowrecord.NewBool(!asBool(v)), nil
}
