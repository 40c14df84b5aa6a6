// Package store provides the embedded key-value persistence shared by
// the identity, trust and store-and-forward layers. It is a thin
// wrapper over Pebble, the teacher's own declared storage engine,
// adding prefix iteration and a consistent error taxonomy.
package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"github.com/rfmesh/rfmesh/internal/common"
)

// DB wraps a single Pebble instance rooted at one directory.
type DB struct {
	pebble *pebble.DB
}

// Open opens (or creates) a Pebble database at dir.
func Open(dir string) (*DB, error) {
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, &storeErr{common.ErrStorageIO, err}
	}
	return &DB{pebble: pdb}, nil
}

// Close flushes and closes the underlying database.
func (d *DB) Close() error {
	if err := d.pebble.Close(); err != nil {
		return &storeErr{common.ErrStorageIO, err}
	}
	return nil
}

// Get returns the value stored at key. found is false if no such key
// exists.
func (d *DB) Get(key []byte) (value []byte, found bool, err error) {
	v, closer, err := d.pebble.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &storeErr{common.ErrStorageIO, err}
	}
	defer closer.Close()
	out := append([]byte(nil), v...)
	return out, true, nil
}

// Put writes key=value, durably by default.
func (d *DB) Put(key, value []byte) error {
	if err := d.pebble.Set(key, value, pebble.Sync); err != nil {
		return &storeErr{common.ErrStorageIO, err}
	}
	return nil
}

// Delete removes key, a no-op if it does not exist.
func (d *DB) Delete(key []byte) error {
	if err := d.pebble.Delete(key, pebble.Sync); err != nil {
		return &storeErr{common.ErrStorageIO, err}
	}
	return nil
}

// IterPrefix calls fn for every key/value pair whose key starts with
// prefix, in ascending key order. fn's returned error aborts iteration
// and is propagated.
func (d *DB) IterPrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := d.pebble.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return &storeErr{common.ErrStorageIO, err}
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...)); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, or nil if prefix is all 0xFF bytes (unbounded scan).
func prefixUpperBound(prefix []byte) []byte {
	upper := bytes.Clone(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xFF {
			upper = upper[:i]
			continue
		}
		upper[i]++
		return upper[:i+1]
	}
	return nil
}

type storeErr struct {
	kind error
	err  error
}

func (e *storeErr) Error() string { return e.kind.Error() + ": " + e.err.Error() }
func (e *storeErr) Unwrap() error { return e.kind }
