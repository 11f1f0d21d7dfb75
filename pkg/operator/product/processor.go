package product

import (
	"fmt"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const outputPort dag.PortHandle = 0

// Input describes one join input: which port it arrives on, its schema,
// and which of its columns form the equi-join key. A cartesian product
// input (no shared key with its peers) uses an empty KeyColumns, which
// projects to the same zero-length key for every row — every row on that
// port then matches every row on every other port.
type Input struct {
	Port       dag.PortHandle
	Schema     flowrecord.Schema
	KeyColumns []int
}

// Processor maintains a persistent join index per input port and emits the
// incremental joined rows for every input delta. It has one output port.
type Processor struct {
	inputs []Input
	byPort map[dag.PortHandle]Input

	idxDB map[dag.PortHandle]storage.DbHandle
	recDB map[dag.PortHandle]storage.DbHandle

	outputSchema flowrecord.Schema
}

// New builds a join processor over the given inputs. Output columns are
// concatenated in the order inputs are listed here.
func New(inputs []Input) *Processor {
	byPort := make(map[dag.PortHandle]Input, len(inputs))
	for _, in := range inputs {
		byPort[in.Port] = in
	}
	return &Processor{inputs: inputs, byPort: byPort}
}

func (p *Processor) UpdateSchema(_ dag.PortHandle, inputs map[dag.PortHandle]flowrecord.Schema) (flowrecord.Schema, error) {
	schema := flowrecord.Schema{}
	first := true
	for _, in := range p.inputs {
		s, ok := inputs[in.Port]
		if !ok {
			return flowrecord.Schema{}, flowerr.Newf(flowerr.IncompatibleSchemas, "product: missing input schema on port %d", in.Port)
		}
		in.Schema = s
		p.byPort[in.Port] = in
		if first {
			schema = s
			first = false
			continue
		}
		schema = flowrecord.Concat(schema, s)
	}
	p.outputSchema = schema
	return schema, nil
}

// Init opens a dup-sort join-key index and a primary-key-addressed record
// store per input port, named after the port so each port's state is
// isolated within the shared bbolt file.
func (p *Processor) Init(env *storage.Env) error {
	p.idxDB = make(map[dag.PortHandle]storage.DbHandle, len(p.inputs))
	p.recDB = make(map[dag.PortHandle]storage.DbHandle, len(p.inputs))
	for _, in := range p.inputs {
		idx, err := env.OpenDatabase(fmt.Sprintf("product_idx_%d", in.Port), true)
		if err != nil {
			return flowerr.Wrap(flowerr.InternalDatabaseError, "product: open index database", err)
		}
		rec, err := env.OpenDatabase(fmt.Sprintf("product_rec_%d", in.Port), false)
		if err != nil {
			return flowerr.Wrap(flowerr.InternalDatabaseError, "product: open record database", err)
		}
		p.idxDB[in.Port] = idx
		p.recDB[in.Port] = rec
	}
	return nil
}

func (p *Processor) Commit(uint64, *storage.SharedTransaction) error { return nil }

func (p *Processor) Process(fromPort dag.PortHandle, op flowrecord.Operation, fwd dag.Forwarder, tx *storage.SharedTransaction, _ dag.Readers) error {
	in, ok := p.byPort[fromPort]
	if !ok {
		return flowerr.Newf(flowerr.InvalidPortHandle, "product: unknown input port %d", fromPort)
	}

	switch op.Kind {
	case flowrecord.OpInsert:
		return p.handleInsert(in, op.New, fwd, tx)

	case flowrecord.OpDelete:
		return p.handleDelete(in, op.Old, fwd, tx)

	case flowrecord.OpUpdate:
		if err := p.handleDelete(in, op.Old, fwd, tx); err != nil {
			return err
		}
		return p.handleInsert(in, op.New, fwd, tx)

	default:
		return flowerr.Newf(flowerr.InternalError, "product: unknown operation kind %v", op.Kind)
	}
}

func (p *Processor) handleInsert(in Input, rec flowrecord.Record, fwd dag.Forwarder, tx *storage.SharedTransaction) error {
	key := flowrecord.ProjectKey(in.KeyColumns, rec)

	combos, err := p.matches(tx, in.Port, key)
	if err != nil {
		return err
	}
	for _, combo := range combos {
		if err := fwd.Send(flowrecord.Insert(p.buildOutput(in.Port, rec, combo)), outputPort); err != nil {
			return err
		}
	}

	pk := flowrecord.PrimaryKey(in.Schema, rec)
	if err := tx.Put(p.idxDB[in.Port], key, pk); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "product: index insert", err)
	}
	if err := tx.Put(p.recDB[in.Port], pk, flowrecord.EncodeRecord(rec)); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "product: record store insert", err)
	}
	return nil
}

func (p *Processor) handleDelete(in Input, rec flowrecord.Record, fwd dag.Forwarder, tx *storage.SharedTransaction) error {
	key := flowrecord.ProjectKey(in.KeyColumns, rec)

	combos, err := p.matches(tx, in.Port, key)
	if err != nil {
		return err
	}
	for _, combo := range combos {
		if err := fwd.Send(flowrecord.Delete(p.buildOutput(in.Port, rec, combo)), outputPort); err != nil {
			return err
		}
	}

	pk := flowrecord.PrimaryKey(in.Schema, rec)
	if err := tx.Del(p.idxDB[in.Port], key, pk); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "product: index delete", err)
	}
	if err := tx.Del(p.recDB[in.Port], pk, nil); err != nil {
		return flowerr.Wrap(flowerr.InternalDatabaseError, "product: record store delete", err)
	}
	return nil
}

// matches scans every peer port's join index for key and returns the
// cartesian product of their matching records, one map per combination
// keyed by peer port. A nil result (not an empty-but-non-nil one) means at
// least one peer port had no match at all, so the equi-join produces no
// rows for this key.
func (p *Processor) matches(tx *storage.SharedTransaction, selfPort dag.PortHandle, key []byte) ([]map[dag.PortHandle]flowrecord.Record, error) {
	combos := []map[dag.PortHandle]flowrecord.Record{{}}
	for _, in := range p.inputs {
		if in.Port == selfPort {
			continue
		}
		peers, err := p.lookupPeers(tx, in.Port, key)
		if err != nil {
			return nil, err
		}
		if len(peers) == 0 {
			return nil, nil
		}
		combos = crossJoin(combos, in.Port, peers)
	}
	return combos, nil
}

func (p *Processor) lookupPeers(tx *storage.SharedTransaction, port dag.PortHandle, key []byte) ([]flowrecord.Record, error) {
	rows, err := tx.ScanPrefix(p.idxDB[port], key)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.InternalDatabaseError, "product: index scan", err)
	}
	recs := make([]flowrecord.Record, 0, len(rows))
	for _, kv := range rows {
		v, ok, err := tx.Get(p.recDB[port], kv.Value)
		if err != nil {
			return nil, flowerr.Wrap(flowerr.InternalDatabaseError, "product: record lookup", err)
		}
		if !ok {
			continue
		}
		rec, err := flowrecord.DecodeRecord(v)
		if err != nil {
			return nil, flowerr.Wrap(flowerr.InternalDatabaseError, "product: record decode", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func crossJoin(existing []map[dag.PortHandle]flowrecord.Record, port dag.PortHandle, records []flowrecord.Record) []map[dag.PortHandle]flowrecord.Record {
	out := make([]map[dag.PortHandle]flowrecord.Record, 0, len(existing)*len(records))
	for _, combo := range existing {
		for _, rec := range records {
			next := make(map[dag.PortHandle]flowrecord.Record, len(combo)+1)
			for k, v := range combo {
				next[k] = v
			}
			next[port] = rec
			out = append(out, next)
		}
	}
	return out
}

// buildOutput concatenates self's record and every peer record in
// p.inputs order, matching UpdateSchema's column ordering.
func (p *Processor) buildOutput(selfPort dag.PortHandle, self flowrecord.Record, combo map[dag.PortHandle]flowrecord.Record) flowrecord.Record {
	var out flowrecord.Record
	for _, in := range p.inputs {
		var rec flowrecord.Record
		if in.Port == selfPort {
			rec = self
		} else {
			rec = combo[in.Port]
		}
		out.Values = append(out.Values, rec.Values...)
	}
	return out
}
