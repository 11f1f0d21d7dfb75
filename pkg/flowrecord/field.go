package flowrecord

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// FieldType tags the kind of value a Field holds.
type FieldType int

const (
	TypeNull FieldType = iota
	TypeBool
	TypeInt
	TypeUInt
	TypeFloat
	TypeString
	TypeBinary
	TypeTimestamp
	TypeDecimal
	TypeDate
	TypeJSON
)

func (t FieldType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeTimestamp:
		return "timestamp"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	case TypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Field is a single tagged value. Only the member matching Type is
// meaningful; the others are zero.
type Field struct {
	Type   FieldType
	Bool   bool
	Int    int64
	UInt   uint64
	Float  float64
	String string
	Binary []byte
	Time   time.Time
}

func Null() Field                  { return Field{Type: TypeNull} }
func NewBool(b bool) Field         { return Field{Type: TypeBool, Bool: b} }
func NewInt(i int64) Field         { return Field{Type: TypeInt, Int: i} }
func NewUInt(u uint64) Field       { return Field{Type: TypeUInt, UInt: u} }
func NewFloat(f float64) Field     { return Field{Type: TypeFloat, Float: f} }
func NewString(s string) Field     { return Field{Type: TypeString, String: s} }
func NewBinary(b []byte) Field     { return Field{Type: TypeBinary, Binary: b} }
func NewTimestamp(t time.Time) Field { return Field{Type: TypeTimestamp, Time: t} }
func NewDate(t time.Time) Field    { return Field{Type: TypeDate, Time: t} }
func NewDecimal(f float64) Field   { return Field{Type: TypeDecimal, Float: f} }
func NewJSON(s string) Field       { return Field{Type: TypeJSON, String: s} }

// IsNull reports whether the field carries SQL NULL.
func (f Field) IsNull() bool { return f.Type == TypeNull }

// AsFloat coerces Int/UInt/Float/Decimal to float64 for arithmetic, per the
// numeric coercion rule in the aggregation spec (Int/Float arithmetic
// promotes to Float). Returns false for non-numeric or null fields.
func (f Field) AsFloat() (float64, bool) {
	switch f.Type {
	case TypeInt:
		return float64(f.Int), true
	case TypeUInt:
		return float64(f.UInt), true
	case TypeFloat, TypeDecimal:
		return f.Float, true
	default:
		return 0, false
	}
}

// Equal compares two fields by type and value. Float comparison is exact;
// callers needing epsilon comparisons should do so explicitly.
func (f Field) Equal(other Field) bool {
	if f.Type != other.Type {
		return false
	}
	switch f.Type {
	case TypeNull:
		return true
	case TypeBool:
		return f.Bool == other.Bool
	case TypeInt:
		return f.Int == other.Int
	case TypeUInt:
		return f.UInt == other.UInt
	case TypeFloat, TypeDecimal:
		return f.Float == other.Float
	case TypeString, TypeJSON:
		return f.String == other.String
	case TypeBinary:
		return string(f.Binary) == string(other.Binary)
	case TypeTimestamp, TypeDate:
		return f.Time.Equal(other.Time)
	default:
		return false
	}
}

// Encode produces the canonical, order-preserving byte encoding used as
// storage keys (group hashes, join keys). A one-byte type tag precedes the
// value so distinct types never collide, matching the "single-byte version
// tag at the head" convention called out for state vectors.
func (f Field) Encode() []byte {
	switch f.Type {
	case TypeNull:
		return []byte{byte(TypeNull)}
	case TypeBool:
		b := byte(0)
		if f.Bool {
			b = 1
		}
		return []byte{byte(TypeBool), b}
	case TypeInt:
		buf := make([]byte, 9)
		buf[0] = byte(TypeInt)
		// Flip sign bit so two's-complement ints sort correctly as unsigned bytes.
		binary.BigEndian.PutUint64(buf[1:], uint64(f.Int)^(1<<63))
		return buf
	case TypeUInt:
		buf := make([]byte, 9)
		buf[0] = byte(TypeUInt)
		binary.BigEndian.PutUint64(buf[1:], f.UInt)
		return buf
	case TypeFloat, TypeDecimal:
		buf := make([]byte, 9)
		buf[0] = byte(f.Type)
		binary.BigEndian.PutUint64(buf[1:], totalOrderFloatBits(f.Float))
		return buf
	case TypeString, TypeJSON:
		// Length-prefixed so concatenated/prefix-scanned encodings stay
		// self-delimiting: "A","B" must not collide with "AB" as a single
		// field, and a join-key prefix scan must never match a longer key.
		buf := make([]byte, 5+len(f.String))
		buf[0] = byte(f.Type)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.String)))
		copy(buf[5:], f.String)
		return buf
	case TypeBinary:
		buf := make([]byte, 5+len(f.Binary))
		buf[0] = byte(TypeBinary)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.Binary)))
		copy(buf[5:], f.Binary)
		return buf
	case TypeTimestamp, TypeDate:
		buf := make([]byte, 9)
		buf[0] = byte(f.Type)
		binary.BigEndian.PutUint64(buf[1:], uint64(f.Time.UnixNano())^(1<<63))
		return buf
	default:
		return []byte{byte(f.Type)}
	}
}

// totalOrderFloatBits maps a float64 to a byte-sortable uint64 bit pattern:
// flip the sign bit for positives, flip every bit for negatives.
func totalOrderFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// Decode reverses Encode. It is the inverse required by the idempotent
// encode/decode testable property.
func Decode(b []byte) (Field, error) {
	f, n, err := DecodePrefix(b)
	if err != nil {
		return Field{}, err
	}
	if n != len(b) {
		return Field{}, fmt.Errorf("flowrecord: %d trailing bytes after field encoding", len(b)-n)
	}
	return f, nil
}

// DecodePrefix decodes one field from the start of b and returns how many
// bytes it consumed, so state vectors holding several concatenated
// encodings can be decoded sequentially (see pkg/operator/aggregation's
// group-state layout).
func DecodePrefix(b []byte) (Field, int, error) {
	if len(b) == 0 {
		return Field{}, 0, fmt.Errorf("flowrecord: empty field encoding")
	}
	t := FieldType(b[0])
	rest := b[1:]
	switch t {
	case TypeNull:
		return Null(), 1, nil
	case TypeBool:
		if len(rest) < 1 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated bool encoding")
		}
		return NewBool(rest[0] == 1), 2, nil
	case TypeInt:
		if len(rest) < 8 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated int encoding")
		}
		u := binary.BigEndian.Uint64(rest) ^ (1 << 63)
		return NewInt(int64(u)), 9, nil
	case TypeUInt:
		if len(rest) < 8 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated uint encoding")
		}
		return NewUInt(binary.BigEndian.Uint64(rest)), 9, nil
	case TypeFloat, TypeDecimal:
		if len(rest) < 8 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated float encoding")
		}
		bits := binary.BigEndian.Uint64(rest)
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		f := math.Float64frombits(bits)
		if t == TypeDecimal {
			return NewDecimal(f), 9, nil
		}
		return NewFloat(f), 9, nil
	case TypeString, TypeJSON:
		if len(rest) < 4 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated string length")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		if uint32(len(rest)-4) < n {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated string body")
		}
		s := string(rest[4 : 4+n])
		consumed := 5 + int(n)
		if t == TypeJSON {
			return NewJSON(s), consumed, nil
		}
		return NewString(s), consumed, nil
	case TypeBinary:
		if len(rest) < 4 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated binary length")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		if uint32(len(rest)-4) < n {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated binary body")
		}
		buf := make([]byte, n)
		copy(buf, rest[4:4+n])
		return NewBinary(buf), 5 + int(n), nil
	case TypeTimestamp, TypeDate:
		if len(rest) < 8 {
			return Field{}, 0, fmt.Errorf("flowrecord: truncated time encoding")
		}
		ns := int64(binary.BigEndian.Uint64(rest) ^ (1 << 63))
		ts := time.Unix(0, ns).UTC()
		if t == TypeDate {
			return NewDate(ts), 9, nil
		}
		return NewTimestamp(ts), 9, nil
	default:
		return Field{}, 0, fmt.Errorf("flowrecord: unknown field type tag %d", b[0])
	}
}
