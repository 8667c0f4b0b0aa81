package modulekv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.db")
	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetOnNeverWrittenBucketIsNotFoundNotError(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("linkify")

	_, ok, err := scoped.Get([]byte("key"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("linkify")

	require.NoError(t, scoped.Set([]byte("last_issue"), []byte("42")))

	v, ok, err := scoped.Get([]byte("last_issue"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", string(v))
}

func TestBucketsAreIsolatedPerModule(t *testing.T) {
	db := openTestDB(t)
	store := Open(db)
	linkify := store.Scoped("linkify")
	mastodon := store.Scoped("mastodon")

	require.NoError(t, linkify.Set([]byte("token"), []byte("linkify-secret")))
	require.NoError(t, mastodon.Set([]byte("token"), []byte("mastodon-secret")))

	v, ok, err := mastodon.Get([]byte("token"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mastodon-secret", string(v))

	v, ok, err = linkify.Get([]byte("token"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "linkify-secret", string(v))
}

func TestRemoveDeletesKeyWithoutAffectingOthers(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("linkify")
	require.NoError(t, scoped.Set([]byte("a"), []byte("1")))
	require.NoError(t, scoped.Set([]byte("b"), []byte("2")))

	require.NoError(t, scoped.Remove([]byte("a")))

	_, ok, err := scoped.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := scoped.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestRemoveOnUncreatedBucketIsNoOp(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("never-written")

	assert.NoError(t, scoped.Remove([]byte("key")))
}

func TestDropBucketRemovesAllKeys(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("linkify")
	require.NoError(t, scoped.Set([]byte("a"), []byte("1")))

	require.NoError(t, scoped.DropBucket())

	_, ok, err := scoped.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDropBucketOnUncreatedBucketIsNoOp(t *testing.T) {
	store := Open(openTestDB(t))
	scoped := store.Scoped("never-written")

	assert.NoError(t, scoped.DropBucket())
}
