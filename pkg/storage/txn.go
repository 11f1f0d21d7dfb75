package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// SharedTransaction is the exclusive, single-writer transaction shared
// across operators within one epoch. The executor hands it to exactly one
// processor at a time (see pkg/executor); SharedTransaction itself does not
// re-enter locking, matching the teacher's single-writer discipline around
// containersMu in pkg/worker/worker.go.
type SharedTransaction struct {
	env *Env
	tx  *bolt.Tx
}

// BeginShared starts the exclusive write transaction for one epoch. The
// caller must call Commit or Rollback exactly once.
func (e *Env) BeginShared() (*SharedTransaction, error) {
	e.writerMu.Lock()
	tx, err := e.db.Begin(true)
	if err != nil {
		e.writerMu.Unlock()
		return nil, fmt.Errorf("storage: failed to begin shared transaction: %w", err)
	}
	return &SharedTransaction{env: e, tx: tx}, nil
}

// Commit commits the transaction and releases the writer lock.
func (t *SharedTransaction) Commit() error {
	defer t.env.writerMu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit failed: %w", err)
	}
	return nil
}

// Rollback aborts the transaction and releases the writer lock.
func (t *SharedTransaction) Rollback() error {
	defer t.env.writerMu.Unlock()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("storage: rollback failed: %w", err)
	}
	return nil
}

// View runs fn against a read-only transaction. Unlike BeginShared, View
// does not take the writer lock: bbolt allows any number of concurrent
// readers alongside the single in-flight writer.
func (e *Env) View(fn func(*SharedTransaction) error) error {
	tx, err := e.db.Begin(false)
	if err != nil {
		return fmt.Errorf("storage: failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()
	return fn(&SharedTransaction{env: e, tx: tx})
}

func (t *SharedTransaction) bucket(db DbHandle) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(db.name))
	if b == nil {
		return nil, fmt.Errorf("storage: database %s not opened", db.name)
	}
	return b, nil
}

// Put stores k -> v. In a dup-sort database this adds a new entry rather
// than overwriting any existing value for k.
func (t *SharedTransaction) Put(db DbHandle, k, v []byte) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	if db.dupSort {
		return b.Put(dupKey(k, t.env.nextDupSeq()), v)
	}
	return b.Put(k, v)
}

// Del removes k. In a dup-sort database, if v is non-nil only the entry
// whose value equals v is removed; if v is nil, every entry for k is
// removed.
func (t *SharedTransaction) Del(db DbHandle, k, v []byte) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	if !db.dupSort {
		return b.Delete(k)
	}

	c := b.Cursor()
	prefix := dupPrefix(k)
	for ck, cv := c.Seek(prefix); ck != nil && bytes.HasPrefix(ck, prefix); ck, cv = c.Next() {
		if v == nil || bytes.Equal(cv, v) {
			if err := c.Delete(); err != nil {
				return err
			}
			if v != nil {
				return nil
			}
		}
	}
	return nil
}

// Get returns the value stored for k, or (nil, false) if absent. In a
// dup-sort database this returns the first matching entry in key order;
// callers needing all values must use ScanPrefix instead.
func (t *SharedTransaction) Get(db DbHandle, k []byte) ([]byte, bool, error) {
	b, err := t.bucket(db)
	if err != nil {
		return nil, false, err
	}
	if !db.dupSort {
		v := b.Get(k)
		if v == nil {
			return nil, false, nil
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out, true, nil
	}

	c := b.Cursor()
	prefix := dupPrefix(k)
	ck, cv := c.Seek(prefix)
	if ck == nil || !bytes.HasPrefix(ck, prefix) {
		return nil, false, nil
	}
	out := make([]byte, len(cv))
	copy(out, cv)
	return out, true, nil
}

// KV is one key/value pair returned by ScanPrefix.
type KV struct {
	Key   []byte
	Value []byte
}

// ScanPrefix returns every entry whose key starts with prefix, in key
// order. Used by the product operator to look up all peer records sharing
// a join key, and by the aggregation operator's measure state scans.
func (t *SharedTransaction) ScanPrefix(db DbHandle, prefix []byte) ([]KV, error) {
	b, err := t.bucket(db)
	if err != nil {
		return nil, err
	}
	var out []KV
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		kc := make([]byte, len(k))
		copy(kc, k)
		vc := make([]byte, len(v))
		copy(vc, v)
		out = append(out, KV{Key: kc, Value: vc})
	}
	return out, nil
}

// dupKey appends an 8-byte big-endian disambiguating sequence to k so
// repeated Puts of the same logical key coexist as distinct bbolt keys.
func dupKey(k []byte, seq uint64) []byte {
	buf := make([]byte, len(k)+8)
	copy(buf, k)
	binary.BigEndian.PutUint64(buf[len(k):], seq)
	return buf
}

func dupPrefix(k []byte) []byte { return k }
