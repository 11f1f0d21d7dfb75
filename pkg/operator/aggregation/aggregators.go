package aggregation

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/flowdb/pkg/flowexpr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

// Count implements COUNT(expr) and, with All set, COUNT(*). A null value
// does not contribute to a non-star count, per spec §4.G's "on Null input
// the measure treats the row as not contributing (except COUNT(*))".
type Count struct {
	All bool
}

func (c Count) contributes(v flowrecord.Field) bool { return c.All || !v.IsNull() }

func (c Count) Insert(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	n := decodeCount(prevState)
	if c.contributes(value) {
		n++
	}
	return flowrecord.NewInt(int64(n)), encodeCount(n), nil
}

func (c Count) Delete(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	n := decodeCount(prevState)
	if c.contributes(value) && n > 0 {
		n--
	}
	return flowrecord.NewInt(int64(n)), encodeCount(n), nil
}

func (c Count) Update(_ *storage.PrefixTxn, prevState []byte, oldValue, newValue flowrecord.Field) (flowrecord.Field, []byte, error) {
	n := decodeCount(prevState)
	if c.contributes(oldValue) && n > 0 {
		n--
	}
	if c.contributes(newValue) {
		n++
	}
	return flowrecord.NewInt(int64(n)), encodeCount(n), nil
}

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeCount(state []byte) uint64 {
	if len(state) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(state)
}

// Sum implements SUM(expr). Int and Float both coerce to Float, per the
// Int/Float arithmetic promotion rule; null values do not contribute.
type Sum struct{}

func (Sum) Insert(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum := decodeFloat(prevState)
	if v, ok := value.AsFloat(); ok {
		sum += v
	}
	return flowrecord.NewFloat(sum), encodeFloat(sum), nil
}

func (Sum) Delete(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum := decodeFloat(prevState)
	if v, ok := value.AsFloat(); ok {
		sum -= v
	}
	return flowrecord.NewFloat(sum), encodeFloat(sum), nil
}

func (Sum) Update(_ *storage.PrefixTxn, prevState []byte, oldValue, newValue flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum := decodeFloat(prevState)
	if v, ok := oldValue.AsFloat(); ok {
		sum -= v
	}
	if v, ok := newValue.AsFloat(); ok {
		sum += v
	}
	return flowrecord.NewFloat(sum), encodeFloat(sum), nil
}

func encodeFloat(f float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

func decodeFloat(state []byte) float64 {
	if len(state) != 8 {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(state))
}

// Avg implements AVG(expr) as running sum + count, so it need not rescan
// the bag on every row. Division by zero (empty group) yields Null rather
// than an error, matching flowexpr.Div's rule.
type Avg struct{}

func (Avg) Insert(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum, count := decodeSumCount(prevState)
	if v, ok := value.AsFloat(); ok {
		sum += v
		count++
	}
	return avgValue(sum, count), encodeSumCount(sum, count), nil
}

func (Avg) Delete(_ *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum, count := decodeSumCount(prevState)
	if v, ok := value.AsFloat(); ok {
		sum -= v
		if count > 0 {
			count--
		}
	}
	return avgValue(sum, count), encodeSumCount(sum, count), nil
}

func (Avg) Update(_ *storage.PrefixTxn, prevState []byte, oldValue, newValue flowrecord.Field) (flowrecord.Field, []byte, error) {
	sum, count := decodeSumCount(prevState)
	if v, ok := oldValue.AsFloat(); ok {
		sum -= v
		if count > 0 {
			count--
		}
	}
	if v, ok := newValue.AsFloat(); ok {
		sum += v
		count++
	}
	return avgValue(sum, count), encodeSumCount(sum, count), nil
}

func avgValue(sum float64, count uint64) flowrecord.Field {
	if count == 0 {
		return flowrecord.Null()
	}
	return flowrecord.NewFloat(sum / float64(count))
}

func encodeSumCount(sum float64, count uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(sum))
	binary.BigEndian.PutUint64(buf[8:16], count)
	return buf
}

func decodeSumCount(state []byte) (sum float64, count uint64) {
	if len(state) != 16 {
		return 0, 0
	}
	sum = math.Float64frombits(binary.BigEndian.Uint64(state[0:8]))
	count = binary.BigEndian.Uint64(state[8:16])
	return sum, count
}

// extremum is the shared implementation behind Min and Max: a multiset of
// contributing values kept in agg_db under this measure's sticky prefix
// (one dup-sort-free entry per distinct value, refcounted), so deleting the
// current extremum can fall back to the next one. Small bags only — this
// rescans every distinct value on each mutation rather than maintaining a
// heap, which is the straightforward reading of spec §4.G's "sorted bags
// for MIN/MAX" with no further structure specified.
type extremum struct {
	pickMax bool
}

// Min implements MIN(expr).
type Min struct{ extremum }

// Max implements MAX(expr).
type Max struct{ extremum }

func NewMin() Min { return Min{} }
func NewMax() Max { return Max{extremum{pickMax: true}} }

func (e extremum) Insert(tx *storage.PrefixTxn, _ []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	if !value.IsNull() {
		if err := e.bump(tx, value, 1); err != nil {
			return flowrecord.Field{}, nil, err
		}
	}
	v, err := e.scan(tx)
	return v, nil, err
}

func (e extremum) Delete(tx *storage.PrefixTxn, _ []byte, value flowrecord.Field) (flowrecord.Field, []byte, error) {
	if !value.IsNull() {
		if err := e.bump(tx, value, -1); err != nil {
			return flowrecord.Field{}, nil, err
		}
	}
	v, err := e.scan(tx)
	return v, nil, err
}

func (e extremum) Update(tx *storage.PrefixTxn, _ []byte, oldValue, newValue flowrecord.Field) (flowrecord.Field, []byte, error) {
	if !oldValue.IsNull() {
		if err := e.bump(tx, oldValue, -1); err != nil {
			return flowrecord.Field{}, nil, err
		}
	}
	if !newValue.IsNull() {
		if err := e.bump(tx, newValue, 1); err != nil {
			return flowrecord.Field{}, nil, err
		}
	}
	v, err := e.scan(tx)
	return v, nil, err
}

// bump adds delta to value's refcount entry, removing it once it reaches
// zero.
func (extremum) bump(tx *storage.PrefixTxn, value flowrecord.Field, delta int64) error {
	key := value.Encode()
	v, ok, err := tx.Get(key)
	if err != nil {
		return err
	}
	var count int64
	if ok {
		count = int64(binary.BigEndian.Uint64(v))
	}
	count += delta
	if count <= 0 {
		return tx.Del(key, nil)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return tx.Put(key, buf)
}

// scan walks every distinct value currently in the bag and returns the
// extremum, or Null if the bag is empty.
func (e extremum) scan(tx *storage.PrefixTxn) (flowrecord.Field, error) {
	rows, err := tx.ScanPrefix(nil)
	if err != nil {
		return flowrecord.Field{}, err
	}
	var best flowrecord.Field
	found := false
	for _, kv := range rows {
		v, err := flowrecord.Decode(kv.Key)
		if err != nil {
			return flowrecord.Field{}, err
		}
		if !found {
			best, found = v, true
			continue
		}
		order, ok := flowexpr.Compare(v, best)
		if !ok {
			continue
		}
		if (e.pickMax && order > 0) || (!e.pickMax && order < 0) {
			best = v
		}
	}
	if !found {
		return flowrecord.Null(), nil
	}
	return best, nil
}
