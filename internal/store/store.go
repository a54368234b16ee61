// Package store wraps go.etcd.io/bbolt behind the narrow ordered
// key/value contract spec.md §6 asks of the storage collaborator: u32
// big-endian keys, write transactions with put/get/delete/clear, forward
// and reverse ordered iteration, and read transactions with point lookup
// and prefix iteration. One physical bbolt file may back several indexes;
// each gets its own top-level bucket named by its index id, which plays
// the role of the "higher layer" key-space partition the core spec treats
// as out of scope.
//
// Grounded on the teacher's storage split (internal/storage.Engine /
// storage.Collection in xDarkicex-libravdb), generalized from a
// string-keyed collection map to a u32-keyed bucket-per-index store
// backed by a real embedded engine instead of the teacher's WAL+map mock.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// MetadataKey is the reserved key (2^32 - 1) under which one index's
// Metadata record lives.
const MetadataKey uint32 = 0xFFFFFFFF

// Store owns one bbolt database file, possibly shared by several indexes.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func bucketName(indexID uint16) []byte {
	return []byte(fmt.Sprintf("idx:%05d", indexID))
}

// Update runs fn inside one write transaction against indexID's bucket,
// creating the bucket on first use. All mutations fn performs are atomic:
// either committed together or rolled back together.
func (s *Store) Update(indexID uint16, fn func(tx *WriteTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(indexID))
		if err != nil {
			return fmt.Errorf("store: create bucket: %w", err)
		}
		return fn(&WriteTx{bucket: b})
	})
}

// View runs fn inside one read transaction against indexID's bucket. Every
// byte slice handed to fn (directly or via Get/ForEach) is a zero-copy
// pointer into bbolt's memory-mapped pages and remains valid exactly for
// the duration of this call, never after.
func (s *Store) View(indexID uint16, fn func(tx *ReadTx) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(indexID))
		if b == nil {
			return fn(&ReadTx{bucket: nil})
		}
		return fn(&ReadTx{bucket: b})
	})
}

func encodeKey(k uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], k)
	return b[:]
}

func decodeKey(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// WriteTx is a write transaction scoped to one index's bucket.
type WriteTx struct {
	bucket *bbolt.Bucket
}

// Put writes val at key, overwriting any previous value.
func (w *WriteTx) Put(key uint32, val []byte) error {
	if err := w.bucket.Put(encodeKey(key), val); err != nil {
		return fmt.Errorf("store: put %d: %w", key, err)
	}
	return nil
}

// Get returns the value at key, or ok=false if absent. The returned slice
// is only valid until the next mutating call on this transaction.
func (w *WriteTx) Get(key uint32) (val []byte, ok bool) {
	v := w.bucket.Get(encodeKey(key))
	if v == nil {
		return nil, false
	}
	return v, true
}

// Delete removes key and reports whether it was present.
func (w *WriteTx) Delete(key uint32) (bool, error) {
	_, existed := w.Get(key)
	if !existed {
		return false, nil
	}
	if err := w.bucket.Delete(encodeKey(key)); err != nil {
		return false, fmt.Errorf("store: delete %d: %w", key, err)
	}
	return true, nil
}

// Clear drops every key in the index's bucket (items and tree alike).
func (w *WriteTx) Clear() error {
	c := w.bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := w.bucket.Delete(k); err != nil {
			return fmt.Errorf("store: clear: %w", err)
		}
	}
	return nil
}

// Len returns the number of keys in the bucket.
func (w *WriteTx) Len() int {
	return w.bucket.Stats().KeyN
}

// LastKey returns the greatest key present, or ok=false if the bucket is
// empty.
func (w *WriteTx) LastKey() (key uint32, ok bool) {
	c := w.bucket.Cursor()
	k, _ := c.Last()
	if k == nil {
		return 0, false
	}
	return decodeKey(k), true
}

// ForEach walks keys in ascending order from the start of the bucket,
// calling fn for each. Iteration stops early if fn returns an error or
// more is false.
func (w *WriteTx) ForEach(fn func(key uint32, val []byte) (more bool, err error)) error {
	c := w.bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		more, err := fn(decodeKey(k), v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// ForEachReverse walks keys in descending order from the end of the
// bucket, calling fn for each, stopping early on error or more=false. This
// backs the prepare-time purge of internal nodes (spec.md invariant 6).
func (w *WriteTx) ForEachReverse(fn func(key uint32, val []byte) (more bool, err error)) error {
	c := w.bucket.Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		more, err := fn(decodeKey(k), v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// DeleteAt removes the key the cursor last visited during a ForEachReverse
// walk. It is only meaningful to call from inside the ForEachReverse
// callback, mirroring a cursor-delete-while-iterating purge.
func (w *WriteTx) DeleteAt(key uint32) error {
	if err := w.bucket.Delete(encodeKey(key)); err != nil {
		return fmt.Errorf("store: delete %d: %w", key, err)
	}
	return nil
}

// ReadTx is a read-only transaction scoped to one index's bucket. A nil
// bucket (index never written) makes every operation behave as "empty".
type ReadTx struct {
	bucket *bbolt.Bucket
}

// Get returns the value at key, or ok=false if absent or the index does
// not exist yet. The slice is valid only for the lifetime of the read
// transaction that produced this ReadTx.
func (r *ReadTx) Get(key uint32) (val []byte, ok bool) {
	if r.bucket == nil {
		return nil, false
	}
	v := r.bucket.Get(encodeKey(key))
	if v == nil {
		return nil, false
	}
	return v, true
}

// ForEach walks keys in ascending order, calling fn for each.
func (r *ReadTx) ForEach(fn func(key uint32, val []byte) (more bool, err error)) error {
	if r.bucket == nil {
		return nil
	}
	c := r.bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		more, err := fn(decodeKey(k), v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// Len returns the number of keys in the bucket, or 0 if the index does not
// exist yet.
func (r *ReadTx) Len() int {
	if r.bucket == nil {
		return 0
	}
	return r.bucket.Stats().KeyN
}
