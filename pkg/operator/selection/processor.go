package selection

import (
	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowexpr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const inputPort dag.PortHandle = 0
const outputPort dag.PortHandle = 0

// Processor filters operations through Predicate. It has exactly one input
// and one output port.
type Processor struct {
	Predicate Expression

	inputSchema flowrecord.Schema
}

// Expression is the subset of flowexpr.Expression the selection operator
// needs: evaluate a record to a Field.
type Expression = flowexpr.Expression

// New builds a selection processor for the given predicate.
func New(predicate Expression) *Processor {
	return &Processor{Predicate: predicate}
}

func (p *Processor) UpdateSchema(_ dag.PortHandle, inputs map[dag.PortHandle]flowrecord.Schema) (flowrecord.Schema, error) {
	schema, ok := inputs[inputPort]
	if !ok {
		return flowrecord.Schema{}, flowerr.Newf(flowerr.IncompatibleSchemas, "selection: missing input schema on port %d", inputPort)
	}
	p.inputSchema = schema
	return schema, nil
}

func (p *Processor) Init(*storage.Env) error { return nil }

func (p *Processor) Process(_ dag.PortHandle, op flowrecord.Operation, fwd dag.Forwarder, _ *storage.SharedTransaction, _ dag.Readers) error {
	switch op.Kind {
	case flowrecord.OpDelete:
		ok, err := p.fulfills(op.Old)
		if err != nil {
			return err
		}
		if ok {
			return fwd.Send(op, outputPort)
		}
		return nil

	case flowrecord.OpInsert:
		ok, err := p.fulfills(op.New)
		if err != nil {
			return err
		}
		if ok {
			return fwd.Send(op, outputPort)
		}
		return nil

	case flowrecord.OpUpdate:
		oldOK, err := p.fulfills(op.Old)
		if err != nil {
			return err
		}
		newOK, err := p.fulfills(op.New)
		if err != nil {
			return err
		}
		switch {
		case oldOK && newOK:
			return fwd.Send(op, outputPort)
		case oldOK && !newOK:
			return fwd.Send(flowrecord.Delete(op.Old), outputPort)
		case !oldOK && newOK:
			return fwd.Send(flowrecord.Insert(op.New), outputPort)
		default:
			return nil
		}

	default:
		return flowerr.Newf(flowerr.InternalError, "selection: unknown operation kind %v", op.Kind)
	}
}

func (p *Processor) Commit(uint64, *storage.SharedTransaction) error { return nil }

// fulfills reports whether record satisfies the predicate. Anything other
// than an exact Boolean(true) result counts as not fulfilling it.
func (p *Processor) fulfills(record flowrecord.Record) (bool, error) {
	v, err := p.Predicate.Eval(record)
	if err != nil {
		return false, flowerr.Wrap(flowerr.InternalError, "selection predicate", err)
	}
	return v.Type == flowrecord.TypeBool && v.Bool, nil
}
