package aggregation

import (
	"bytes"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowexpr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const inputPort dag.PortHandle = 0
const outputPort dag.PortHandle = 0

// counterKey is the single global meta_db key handing out sticky
// per-group-per-measure prefixes, matching the grounding source's one
// package-wide COUNTER_KEY.
var counterKey = []byte{1}

// Processor maintains one materialized group view per distinct combination
// of dimension values and emits the Insert/Update/Delete deltas against it.
type Processor struct {
	rules    []FieldRule
	allDims  []flowexpr.Expression
	outDims  []outDimension
	measures []outMeasure

	inputSchema flowrecord.Schema
	outputWidth int

	valuesDB storage.DbHandle
	countDB  storage.DbHandle
	metaDB   storage.DbHandle
	aggDB    storage.DbHandle
}

// New builds an aggregation processor from an ordered list of field rules.
// Every rule contributes to the group hash if it's a Dimension, but only
// included dimensions and measures occupy an output column.
func New(rules []FieldRule) *Processor {
	allDims, outDims, measures := populateRules(rules)
	return &Processor{
		rules:       rules,
		allDims:     allDims,
		outDims:     outDims,
		measures:    measures,
		outputWidth: len(outDims) + len(measures),
	}
}

func (p *Processor) UpdateSchema(_ dag.PortHandle, inputs map[dag.PortHandle]flowrecord.Schema) (flowrecord.Schema, error) {
	schema, ok := inputs[inputPort]
	if !ok {
		return flowrecord.Schema{}, flowerr.Newf(flowerr.IncompatibleSchemas, "aggregation: missing input schema on port %d", inputPort)
	}
	p.inputSchema = schema

	// Output columns are the compacted layout: included dimensions and
	// measures only, in rule order — a Dimension with Included=false
	// participates in grouping but never occupies an output column. This
	// walk assigns indexes the same way populateRules does, so it lines up
	// with outDims/measures' own outIndex values.
	fields := make([]flowrecord.FieldDefinition, p.outputWidth)
	outIdx := 0
	for _, rule := range p.rules {
		switch r := rule.(type) {
		case Dimension:
			if r.Included {
				fields[outIdx] = flowrecord.FieldDefinition{Name: r.Name, Nullable: true}
				outIdx++
			}
		case Measure:
			fields[outIdx] = flowrecord.FieldDefinition{Name: r.Name, Nullable: true}
			outIdx++
		}
	}
	out := flowrecord.Schema{Fields: fields}
	return out, nil
}

func (p *Processor) Init(env *storage.Env) error {
	var err error
	if p.valuesDB, err = env.OpenDatabase("aggr", false); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "aggregation: open values database", err)
	}
	if p.countDB, err = env.OpenDatabase("aggregation_count", false); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "aggregation: open count database", err)
	}
	if p.metaDB, err = env.OpenDatabase("meta", false); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "aggregation: open meta database", err)
	}
	if p.aggDB, err = env.OpenDatabase("aggr_data", false); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "aggregation: open agg database", err)
	}
	return nil
}

func (p *Processor) Commit(uint64, *storage.SharedTransaction) error { return nil }

func (p *Processor) Process(_ dag.PortHandle, op flowrecord.Operation, fwd dag.Forwarder, tx *storage.SharedTransaction, _ dag.Readers) error {
	ops, err := p.aggregate(tx, op)
	if err != nil {
		return err
	}
	for _, o := range ops {
		if err := fwd.Send(o, outputPort); err != nil {
			return err
		}
	}
	return nil
}

// aggregate applies one input delta and returns the resulting output
// deltas, mirroring AggregationProcessor::aggregate in the grounding
// source.
func (p *Processor) aggregate(tx *storage.SharedTransaction, op flowrecord.Operation) ([]flowrecord.Operation, error) {
	switch op.Kind {
	case flowrecord.OpInsert:
		out, err := p.aggInsert(tx, op.New)
		if err != nil {
			return nil, err
		}
		return []flowrecord.Operation{out}, nil

	case flowrecord.OpDelete:
		out, err := p.aggDelete(tx, op.Old)
		if err != nil {
			return nil, err
		}
		return []flowrecord.Operation{out}, nil

	case flowrecord.OpUpdate:
		oldHash, err := groupHash(p.allDims, op.Old)
		if err != nil {
			return nil, err
		}
		newHash, err := groupHash(p.allDims, op.New)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(oldHash, newHash) {
			out, err := p.aggUpdate(tx, op.Old, op.New, oldHash)
			if err != nil {
				return nil, err
			}
			return []flowrecord.Operation{out}, nil
		}
		del, err := p.aggDelete(tx, op.Old)
		if err != nil {
			return nil, err
		}
		ins, err := p.aggInsert(tx, op.New)
		if err != nil {
			return nil, err
		}
		return []flowrecord.Operation{del, ins}, nil

	default:
		return nil, flowerr.Newf(flowerr.InternalError, "aggregation: unknown operation kind %v", op.Kind)
	}
}

func (p *Processor) aggInsert(tx *storage.SharedTransaction, newRec flowrecord.Record) (flowrecord.Operation, error) {
	hash, err := groupHash(p.allDims, newRec)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	if _, err := p.bumpGroupCount(tx, hash, 1); err != nil {
		return flowrecord.Operation{}, err
	}

	curState, err := p.loadState(tx, hash)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	outInsert := flowrecord.Nulls(p.outputWidth)
	outDelete := flowrecord.Nulls(p.outputWidth)
	nextState, err := p.calcMeasures(tx, curState, nil, &newRec, &outDelete, &outInsert, aggInsertOp)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	var result flowrecord.Operation
	if curState == nil {
		p.fillDimensions(newRec, &outInsert)
		result = flowrecord.Insert(outInsert)
	} else {
		p.fillDimensions(newRec, &outInsert)
		p.fillDimensions(newRec, &outDelete)
		result = flowrecord.Update(outDelete, outInsert)
	}

	if err := p.saveState(tx, hash, nextState); err != nil {
		return flowrecord.Operation{}, err
	}
	return result, nil
}

func (p *Processor) aggDelete(tx *storage.SharedTransaction, oldRec flowrecord.Record) (flowrecord.Operation, error) {
	hash, err := groupHash(p.allDims, oldRec)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	prevCount, err := p.bumpGroupCount(tx, hash, -1)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	curState, err := p.loadState(tx, hash)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	outInsert := flowrecord.Nulls(p.outputWidth)
	outDelete := flowrecord.Nulls(p.outputWidth)
	nextState, err := p.calcMeasures(tx, curState, &oldRec, nil, &outDelete, &outInsert, aggDeleteOp)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	disappeared := prevCount == 1
	var result flowrecord.Operation
	if disappeared {
		p.fillDimensions(oldRec, &outDelete)
		result = flowrecord.Delete(outDelete)
	} else {
		p.fillDimensions(oldRec, &outInsert)
		p.fillDimensions(oldRec, &outDelete)
		result = flowrecord.Update(outDelete, outInsert)
	}

	if disappeared {
		if err := p.clearState(tx, hash); err != nil {
			return flowrecord.Operation{}, err
		}
	} else if err := p.saveState(tx, hash, nextState); err != nil {
		return flowrecord.Operation{}, err
	}
	return result, nil
}

func (p *Processor) aggUpdate(tx *storage.SharedTransaction, oldRec, newRec flowrecord.Record, hash []byte) (flowrecord.Operation, error) {
	curState, err := p.loadState(tx, hash)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	outInsert := flowrecord.Nulls(p.outputWidth)
	outDelete := flowrecord.Nulls(p.outputWidth)
	nextState, err := p.calcMeasures(tx, curState, &oldRec, &newRec, &outDelete, &outInsert, aggUpdateOp)
	if err != nil {
		return flowrecord.Operation{}, err
	}

	p.fillDimensions(newRec, &outInsert)
	p.fillDimensions(oldRec, &outDelete)

	if err := p.saveState(tx, hash, nextState); err != nil {
		return flowrecord.Operation{}, err
	}
	return flowrecord.Update(outDelete, outInsert), nil
}

func (p *Processor) fillDimensions(rec flowrecord.Record, out *flowrecord.Record) {
	for _, d := range p.outDims {
		v, err := d.expr.Eval(rec)
		if err != nil {
			v = flowrecord.Null()
		}
		out.SetValue(d.outIndex, v)
	}
}
