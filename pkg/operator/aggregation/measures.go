package aggregation

import (
	"encoding/binary"

	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

// aggOp tags which of Insert/Delete/Update calcMeasures is driving, so it
// knows which aggregator method to call and which record(s) to evaluate
// the measure expression against.
type aggOp int

const (
	aggInsertOp aggOp = iota
	aggDeleteOp
	aggUpdateOp
)

// bumpGroupCount adds delta to hash's reference count in count_db, removing
// the entry once it reaches zero, and returns the count as it stood before
// this update (so the caller can detect a group's first row or last row).
func (p *Processor) bumpGroupCount(tx *storage.SharedTransaction, hash []byte, delta int64) (uint64, error) {
	v, ok, err := tx.Get(p.countDB, hash)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if ok && len(v) == 8 {
		cur = binary.BigEndian.Uint64(v)
	}

	var next uint64
	switch {
	case delta < 0:
		if d := uint64(-delta); cur >= d {
			next = cur - d
		}
	default:
		next = cur + uint64(delta)
	}

	if next > 0 {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		if err := tx.Put(p.countDB, hash, buf); err != nil {
			return 0, err
		}
	} else if err := tx.Del(p.countDB, hash, nil); err != nil {
		return 0, err
	}
	return cur, nil
}

// loadState returns the group's current measure state vector, or nil if
// the group has no prior contributing row.
func (p *Processor) loadState(tx *storage.SharedTransaction, hash []byte) ([]measureState, error) {
	v, ok, err := tx.Get(p.valuesDB, hash)
	if err != nil || !ok {
		return nil, err
	}
	return decodeStateVector(v, len(p.measures))
}

func (p *Processor) saveState(tx *storage.SharedTransaction, hash []byte, states []measureState) error {
	var buf []byte
	for _, m := range states {
		buf = append(buf, encodeMeasureState(m)...)
	}
	return tx.Put(p.valuesDB, hash, buf)
}

func (p *Processor) clearState(tx *storage.SharedTransaction, hash []byte) error {
	return tx.Del(p.valuesDB, hash, nil)
}

// calcMeasures drives every configured measure's aggregator for one input
// delta, filling outDelete/outInsert with each measure's before/after value
// and returning the group's updated state vector. Mirrors
// calc_and_fill_measures in the grounding source.
func (p *Processor) calcMeasures(
	tx *storage.SharedTransaction,
	curState []measureState,
	oldRec, newRec *flowrecord.Record,
	outDelete, outInsert *flowrecord.Record,
	op aggOp,
) ([]measureState, error) {
	next := make([]measureState, len(p.measures))

	for i, m := range p.measures {
		var curr *measureState
		if i < len(curState) {
			curr = &curState[i]
		}

		prefix := curr.prefixOr(0)
		var prevState []byte
		if curr != nil {
			prevState = curr.State
			outDelete.SetValue(m.outIndex, curr.Value)
		}
		if prefix == 0 {
			var err error
			prefix, err = storage.AllocatePrefix(tx, p.metaDB, counterKey)
			if err != nil {
				return nil, err
			}
		}

		prefixTxn := storage.NewPrefixTxn(tx, p.aggDB, prefix)

		var (
			newValue flowrecord.Field
			newState []byte
			err      error
		)
		switch op {
		case aggInsertOp:
			v, evalErr := m.expr.Eval(*newRec)
			if evalErr != nil {
				return nil, evalErr
			}
			newValue, newState, err = m.aggregator.Insert(prefixTxn, prevState, v)
		case aggDeleteOp:
			v, evalErr := m.expr.Eval(*oldRec)
			if evalErr != nil {
				return nil, evalErr
			}
			newValue, newState, err = m.aggregator.Delete(prefixTxn, prevState, v)
		case aggUpdateOp:
			oldV, evalErr := m.expr.Eval(*oldRec)
			if evalErr != nil {
				return nil, evalErr
			}
			newV, evalErr := m.expr.Eval(*newRec)
			if evalErr != nil {
				return nil, evalErr
			}
			newValue, newState, err = m.aggregator.Update(prefixTxn, prevState, oldV, newV)
		}
		if err != nil {
			return nil, err
		}

		outInsert.SetValue(m.outIndex, newValue)
		next[i] = measureState{Prefix: prefix, Value: newValue, State: newState}
	}

	return next, nil
}

// prefixOr returns m.Prefix, or fallback if m is nil (no prior state for
// this measure).
func (m *measureState) prefixOr(fallback uint32) uint32 {
	if m == nil {
		return fallback
	}
	return m.Prefix
}
