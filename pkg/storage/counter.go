package storage

import "encoding/binary"

// GetCounter reads a little-used-elsewhere u64 counter, defaulting to 0.
func (t *SharedTransaction) GetCounter(db DbHandle, k []byte) (uint64, error) {
	v, ok, err := t.Get(db, k)
	if err != nil {
		return 0, err
	}
	if !ok || len(v) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

// PutCounter writes a u64 counter value.
func (t *SharedTransaction) PutCounter(db DbHandle, k []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return t.Put(db, k, buf)
}

// IncrCounter adds delta (which may be negative) to the counter at k and
// returns the new value; a result below zero is stored as zero.
func (t *SharedTransaction) IncrCounter(db DbHandle, k []byte, delta int64) (uint64, error) {
	cur, err := t.GetCounter(db, k)
	if err != nil {
		return 0, err
	}
	next := int64(cur) + delta
	if next < 0 {
		next = 0
	}
	if err := t.PutCounter(db, k, uint64(next)); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

// DeleteCounter removes the counter entry at k entirely.
func (t *SharedTransaction) DeleteCounter(db DbHandle, k []byte) error {
	return t.Del(db, k, nil)
}
