// Package modulekv implements the per-module key/value store exposed to
// guests through the kv capability (C2). Each module gets its own bbolt
// bucket, named after the module, inside the same database file the
// admin table lives in — so a guest can never see another module's
// keys even though they share one file on disk.
package modulekv

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/trinitybot/trinity/pkg/models"
)

// Store is the module KV store (C2). One Store wraps the whole
// database; Scoped binds it to a single module's bucket.
type Store struct {
	db *bbolt.DB
}

// Open wraps db for module-scoped key/value access. The caller owns
// db's lifetime.
func Open(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// Scoped returns a handle restricted to moduleName's bucket. The
// bucket is created lazily on first write, never on open, so modules
// that never call kv.set leave no trace in the database.
func (s *Store) Scoped(moduleName string) *Scoped {
	return &Scoped{db: s.db, bucket: []byte(moduleName)}
}

// Scoped is a module's view of its own bucket. It is the concrete type
// behind the kv capability a guest's capability table resolves to.
type Scoped struct {
	db     *bbolt.DB
	bucket []byte
}

// Get returns the value stored at key, or ok=false if the module's
// bucket or the key itself does not exist. Absence is not an error.
func (s *Scoped) Get(key []byte) (value []byte, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	if err != nil {
		return nil, false, &models.KVError{Kind: models.KVErrorInternal, Message: err.Error()}
	}
	return value, ok, nil
}

// Set stores value at key, creating the module's bucket if this is its
// first write.
func (s *Scoped) Set(key, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return &models.KVError{Kind: models.KVErrorInternal, Message: err.Error()}
	}
	return nil
}

// Remove deletes key from the module's bucket. Removing an absent key,
// or removing from a bucket that was never created, is a no-op.
func (s *Scoped) Remove(key []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
	if err != nil {
		return &models.KVError{Kind: models.KVErrorInternal, Message: err.Error()}
	}
	return nil
}

// DropBucket removes the module's entire bucket, including all keys.
// Dropping a bucket that was never created is a no-op. The registry
// does not call it: a module's bucket stays in the database after the
// module's file is removed from the module directories.
func (s *Scoped) DropBucket() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(s.bucket)
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("drop module bucket %q: %w", s.bucket, err)
	}
	return nil
}
