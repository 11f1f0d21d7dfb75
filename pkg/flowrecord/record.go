package flowrecord

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Record is an ordered vector of field values matching a Schema, with an
// optional version counter used by sinks to detect stale writes.
type Record struct {
	Values  []Field
	Version uint64
}

// Nulls builds an all-null record of width n.
func Nulls(n int) Record {
	vals := make([]Field, n)
	for i := range vals {
		vals[i] = Null()
	}
	return Record{Values: vals}
}

// NewRecord builds a record from the given values.
func NewRecord(values ...Field) Record {
	return Record{Values: values}
}

// SetValue sets position i, growing the vector if necessary.
func (r *Record) SetValue(i int, v Field) {
	for len(r.Values) <= i {
		r.Values = append(r.Values, Null())
	}
	r.Values[i] = v
}

// Clone returns a deep-enough copy (the Values slice is copied; Field
// values are themselves immutable by convention).
func (r Record) Clone() Record {
	vals := make([]Field, len(r.Values))
	copy(vals, r.Values)
	return Record{Values: vals, Version: r.Version}
}

// PrimaryKey projects the record onto the schema's primary-key columns and
// returns their canonical encoding concatenated in column order.
func PrimaryKey(schema Schema, r Record) []byte {
	return ProjectKey(schema.PrimaryKey, r)
}

// ProjectKey encodes the given column positions of r in order, concatenated.
func ProjectKey(cols []int, r Record) []byte {
	var buf bytes.Buffer
	for _, c := range cols {
		if c < len(r.Values) {
			buf.Write(r.Values[c].Encode())
		} else {
			buf.Write(Null().Encode())
		}
	}
	return buf.Bytes()
}

// SamePrimaryKey reports whether old and new share the same primary-key
// projection under schema — the invariant an Operation.Update must satisfy.
func SamePrimaryKey(schema Schema, old, new Record) bool {
	return bytes.Equal(PrimaryKey(schema, old), PrimaryKey(schema, new))
}

// HasNullInNonNullable reports whether r violates schema's nullability
// constraints — used to enforce "no record with a null in a non-nullable
// column is ever emitted".
func HasNullInNonNullable(schema Schema, r Record) bool {
	for i, def := range schema.Fields {
		if def.Nullable {
			continue
		}
		if i >= len(r.Values) || r.Values[i].IsNull() {
			return true
		}
	}
	return false
}

// EncodeRecord serializes a whole record as its version followed by every
// field's self-delimiting canonical encoding concatenated in column order —
// used by the product operator's record store to persist full rows, not
// just key projections.
func EncodeRecord(r Record) []byte {
	var buf bytes.Buffer
	var versionBuf [8]byte
	binary.BigEndian.PutUint64(versionBuf[:], r.Version)
	buf.Write(versionBuf[:])
	for _, v := range r.Values {
		buf.Write(v.Encode())
	}
	return buf.Bytes()
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < 8 {
		return Record{}, fmt.Errorf("flowrecord: truncated record encoding")
	}
	version := binary.BigEndian.Uint64(b[:8])
	rest := b[8:]
	var values []Field
	for len(rest) > 0 {
		f, n, err := DecodePrefix(rest)
		if err != nil {
			return Record{}, err
		}
		values = append(values, f)
		rest = rest[n:]
	}
	return Record{Values: values, Version: version}, nil
}
