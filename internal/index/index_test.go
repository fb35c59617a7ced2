package index

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestIndex(t *testing.T) {
	db := setupTestDB(t)
	ix := New(db)

	now := time.Now()

	t.Run("TryGetMiss", func(t *testing.T) {
		_, ok, err := ix.TryGet("missing.txt")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ApplyAndTryGet", func(t *testing.T) {
		err := ix.Apply([]Entry{
			{Path: "a.txt", Size: 10, ModTime: now, Hash: "aaaa"},
			{Path: "dir/b.txt", Size: 20, ModTime: now, Hash: "bbbb"},
		}, nil)
		require.NoError(t, err)

		entry, ok, err := ix.TryGet("a.txt")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10), entry.Size)
		assert.Equal(t, "aaaa", entry.Hash)
		assert.True(t, entry.ModTime.Equal(now))
	})

	t.Run("Matches", func(t *testing.T) {
		hash, ok, err := ix.Matches("a.txt", 10, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "aaaa", hash)

		_, ok, err = ix.Matches("a.txt", 11, now)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = ix.Matches("a.txt", 10, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Paths", func(t *testing.T) {
		paths, err := ix.Paths()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a.txt", "dir/b.txt"}, paths)
	})

	t.Run("ApplyRemoves", func(t *testing.T) {
		err := ix.Apply(nil, []string{"a.txt"})
		require.NoError(t, err)

		_, ok, err := ix.TryGet("a.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = ix.TryGet("dir/b.txt")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
