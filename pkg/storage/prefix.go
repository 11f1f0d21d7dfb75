package storage

import "encoding/binary"

// PrefixTxn is a logical sub-transaction that transparently prepends a
// 4-byte big-endian prefix to every key, so independent operator instances
// (e.g. two aggregator measures) can share one database without key
// collisions. Grounded on the teacher's per-bucket isolation in
// pkg/storage/boltdb.go, generalized from "one bucket per resource kind" to
// "one byte-prefix per sub-transaction within a shared bucket".
type PrefixTxn struct {
	parent *SharedTransaction
	db     DbHandle
	prefix uint32
}

// NewPrefixTxn wraps parent with a prefix scoped to db.
func NewPrefixTxn(parent *SharedTransaction, db DbHandle, prefix uint32) *PrefixTxn {
	return &PrefixTxn{parent: parent, db: db, prefix: prefix}
}

func (p *PrefixTxn) key(k []byte) []byte {
	buf := make([]byte, 4+len(k))
	binary.BigEndian.PutUint32(buf[:4], p.prefix)
	copy(buf[4:], k)
	return buf
}

func (p *PrefixTxn) Put(k, v []byte) error { return p.parent.Put(p.db, p.key(k), v) }

func (p *PrefixTxn) Del(k, v []byte) error { return p.parent.Del(p.db, p.key(k), v) }

func (p *PrefixTxn) Get(k []byte) ([]byte, bool, error) { return p.parent.Get(p.db, p.key(k)) }

// ScanPrefix scans all keys under this sub-transaction's prefix joined with
// the caller-supplied sub-prefix, stripping the 4-byte prefix from returned
// keys.
func (p *PrefixTxn) ScanPrefix(sub []byte) ([]KV, error) {
	rows, err := p.parent.ScanPrefix(p.db, p.key(sub))
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Key = rows[i].Key[4:]
	}
	return rows, nil
}

// AllocatePrefix hands out a fresh, process-wide-unique u32 prefix from
// meta_db's monotonic counter. Grounded on spec §4.G's "first insert into a
// group allocates a prefix per measure from meta_db's monotonic counter;
// subsequent operations reuse it" — prefix assignment is sticky, so callers
// must persist the returned value keyed by (group, measure) themselves.
func AllocatePrefix(tx *SharedTransaction, metaDB DbHandle, counterKey []byte) (uint32, error) {
	v, ok, err := tx.Get(metaDB, counterKey)
	if err != nil {
		return 0, err
	}
	var next uint32
	if ok && len(v) == 4 {
		next = binary.BigEndian.Uint32(v) + 1
	} else {
		next = 1
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, next)
	if err := tx.Put(metaDB, counterKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}
