// Package storage provides the transactional embedded key-value
// environment shared by every operator in a flowdb pipeline. It is
// grounded on the teacher's pkg/storage/boltdb.go: a single go.etcd.io/bbolt
// file per instance, buckets opened idempotently at operator init, and the
// same db.Update/db.View transaction shape. bbolt has no native dup-sort
// mode, so OpenDatabase(name, dupSort=true) emulates "multiple values per
// key" the way the teacher already scans TLS certificates by cursor
// prefix: each value is stored under key||seq, and reads scan the
// key-prefixed range.
package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DbHandle identifies one named database (bbolt bucket) opened from an Env.
type DbHandle struct {
	name    string
	dupSort bool
}

func (h DbHandle) Name() string    { return h.name }
func (h DbHandle) DupSort() bool   { return h.dupSort }

// Env is the single embedded key-value environment for one pipeline
// instance.
type Env struct {
	db *bolt.DB

	mu        sync.Mutex
	opened    map[string]DbHandle
	dupSeq    atomic.Uint64
	writerMu  sync.Mutex // serializes SharedTransaction acquisition
}

// OpenEnv opens (creating if absent) the bbolt file at <dataDir>/flowdb.db.
func OpenEnv(dataDir string) (*Env, error) {
	path := filepath.Join(dataDir, "flowdb.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open environment: %w", err)
	}
	e := &Env{db: db, opened: make(map[string]DbHandle)}
	e.dupSeq.Store(uint64(time.Now().UnixNano()))
	return e, nil
}

// Close closes the environment.
func (e *Env) Close() error {
	return e.db.Close()
}

// OpenDatabase creates (idempotently) a named database. dupSort enables the
// multiple-values-per-key emulation used by the product operator's join
// index.
func (e *Env) OpenDatabase(name string, dupSort bool) (DbHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.opened[name]; ok {
		return h, nil
	}

	err := e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return DbHandle{}, fmt.Errorf("storage: failed to create database %s: %w", name, err)
	}

	h := DbHandle{name: name, dupSort: dupSort}
	e.opened[name] = h
	return h, nil
}

// nextDupSeq hands out a monotonically increasing suffix disambiguating
// duplicate-key entries within a dup-sort database.
func (e *Env) nextDupSeq() uint64 {
	return e.dupSeq.Add(1)
}
