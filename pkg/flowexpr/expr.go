package flowexpr

import "github.com/cuemby/flowdb/pkg/flowrecord"

// Expression evaluates to a single Field against one record.
type Expression interface {
	Eval(r flowrecord.Record) (flowrecord.Field, error)
}

// Column reads the value at a fixed position in the record.
type Column struct {
	Index int
}

func (c Column) Eval(r flowrecord.Record) (flowrecord.Field, error) {
	if c.Index < 0 || c.Index >= len(r.Values) {
		return flowrecord.Null(), nil
	}
	return r.Values[c.Index], nil
}

// Literal evaluates to a fixed value regardless of the record.
type Literal struct {
	Value flowrecord.Field
}

func (l Literal) Eval(flowrecord.Record) (flowrecord.Field, error) {
	return l.Value, nil
}
