package aggregation

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/flowdb/pkg/flowexpr"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// measureState is one measure's entry in a group's state vector: the
// sticky per-measure prefix into agg_db, the measure's current output
// value, and its opaque private state (nil if the aggregator keeps none).
type measureState struct {
	Prefix uint32
	Value  flowrecord.Field
	State  []byte
}

// encodeMeasureState lays out one entry as 4 bytes prefix, 2 bytes
// value-length, value bytes, 2 bytes state-length, state bytes — the
// layout spec §4.G specifies for values_db's state vector.
func encodeMeasureState(m measureState) []byte {
	valBytes := m.Value.Encode()
	buf := make([]byte, 4+2+len(valBytes)+2+len(m.State))
	binary.BigEndian.PutUint32(buf[0:4], m.Prefix)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(valBytes)))
	off := 6
	copy(buf[off:], valBytes)
	off += len(valBytes)
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(m.State)))
	off += 2
	copy(buf[off:], m.State)
	return buf
}

// decodeMeasureStatePrefix decodes one entry from the start of buf and
// returns how many bytes it consumed, so a group's full state vector
// (one entry per measure, in rule order) can be decoded sequentially.
func decodeMeasureStatePrefix(buf []byte) (measureState, int, error) {
	if len(buf) < 6 {
		return measureState{}, 0, fmt.Errorf("aggregation: truncated measure state header")
	}
	prefix := binary.BigEndian.Uint32(buf[0:4])
	valLen := int(binary.BigEndian.Uint16(buf[4:6]))
	off := 6
	if len(buf) < off+valLen {
		return measureState{}, 0, fmt.Errorf("aggregation: truncated measure value")
	}
	value, err := flowrecord.Decode(buf[off : off+valLen])
	if err != nil {
		return measureState{}, 0, err
	}
	off += valLen
	if len(buf) < off+2 {
		return measureState{}, 0, fmt.Errorf("aggregation: truncated state-length header")
	}
	stateLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if len(buf) < off+stateLen {
		return measureState{}, 0, fmt.Errorf("aggregation: truncated measure state body")
	}
	var state []byte
	if stateLen > 0 {
		state = append([]byte(nil), buf[off:off+stateLen]...)
	}
	off += stateLen
	return measureState{Prefix: prefix, Value: value, State: state}, off, nil
}

// decodeStateVector decodes n sequential measureState entries.
func decodeStateVector(buf []byte, n int) ([]measureState, error) {
	out := make([]measureState, 0, n)
	for i := 0; i < n; i++ {
		m, consumed, err := decodeMeasureStatePrefix(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		buf = buf[consumed:]
	}
	return out, nil
}

// defaultDimensionHash is the sentinel group hash used when a relation has
// no dimensions at all, so a single implicit group exists.
var defaultDimensionHash = []byte{0xFF}

// groupHash concatenates the canonical encodings of every dimension
// expression evaluated against record, or the sentinel byte if dims is
// empty.
func groupHash(dims []flowexpr.Expression, record flowrecord.Record) ([]byte, error) {
	if len(dims) == 0 {
		return defaultDimensionHash, nil
	}
	var buf []byte
	for _, d := range dims {
		v, err := d.Eval(record)
		if err != nil {
			return nil, err
		}
		buf = append(buf, v.Encode()...)
	}
	return buf, nil
}
