// Package adminkv implements the host's own small persistent table for
// bookkeeping (device id, schema version), backed by a single bbolt
// bucket named "@admin" in the shared KV database file.
package adminkv

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// bucketName matches the table name used by the original Rust host so
// operators inspecting the database file recognize it.
var bucketName = []byte("@admin")

// Well-known keys.
const (
	KeyDeviceID = "device_id"
	KeyVersion  = "version"
)

// Table is the admin KV table (C1).
type Table struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the admin bucket in db. The
// caller owns db's lifetime; Table does not close it.
func Open(db *bbolt.DB) (*Table, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open admin table: %w", err)
	}
	return &Table{db: db}, nil
}

// Read returns the raw bytes stored at key, or nil with ok=false if
// the key (or the table itself) is absent. A missing table is never
// an error — it is simply "no value".
func (t *Table) Read(key string) (value []byte, ok bool, err error) {
	err = t.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return value, ok, err
}

// ReadString reads key as a UTF-8 string.
func (t *Table) ReadString(key string) (string, bool, error) {
	v, ok, err := t.Read(key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}

// ReadU64 reads key as a little-endian 64-bit unsigned integer.
func (t *Table) ReadU64(key string) (uint64, bool, error) {
	v, ok, err := t.Read(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("admin key %q: expected 8 bytes, got %d", key, len(v))
	}
	return binary.LittleEndian.Uint64(v), true, nil
}

// Write stores value at key. Writes are transactional: the value is
// either fully committed or the prior value is preserved untouched.
func (t *Table) Write(key string, value []byte) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// WriteString stores a UTF-8 string at key.
func (t *Table) WriteString(key, value string) error {
	return t.Write(key, []byte(value))
}

// WriteU64 stores a little-endian 64-bit unsigned integer at key.
func (t *Table) WriteU64(key string, value uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return t.Write(key, buf)
}

// Remove deletes key. Removing an absent key is a no-op.
func (t *Table) Remove(key string) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// ErrVersionRegressed reports a schema version that would move
// backwards. Migrate does not return it: Migrate only ever raises the
// version, and an on-disk version newer than CurrentSchemaVersion is
// logged and left as it is.
var ErrVersionRegressed = errors.New("adminkv: schema version would regress")
