package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/object"
)

func treeWith(t *testing.T, name, blobHash string) *object.Tree {
	t.Helper()
	return &object.Tree{Entries: []object.TreeEntry{
		{Name: name, Kind: object.KindBlob, Hash: blobHash},
	}}
}

func newTestStore(t *testing.T) (*FileStore, string) {
	dir := t.TempDir()
	s, err := New(Options{Root: dir, CacheSize: 16})
	require.NoError(t, err)
	return s, dir
}

func TestFileStore(t *testing.T) {
	t.Run("PutIsIdempotent", func(t *testing.T) {
		s, dir := newTestStore(t)

		content := []byte("the same bytes")
		hash1, err := s.Put(content)
		require.NoError(t, err)
		hash2, err := s.Put(content)
		require.NoError(t, err)
		assert.Equal(t, hash1, hash2)

		// Exactly one copy on disk
		matches, err := filepath.Glob(filepath.Join(dir, hash1[:2], "*"))
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("GetRoundtrip", func(t *testing.T) {
		s, _ := newTestStore(t)

		content := []byte("some content\nwith lines\n")
		hash, err := s.Put(content)
		require.NoError(t, err)

		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		s, _ := newTestStore(t)

		hash, err := s.Put(nil)
		require.NoError(t, err)

		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s, _ := newTestStore(t)

		missing := "0000000000000000000000000000000000000000000000000000000000000000"
		_, err := s.Get(missing)
		assert.ErrorIs(t, err, ErrObjectNotFound)
		assert.False(t, s.Exists(missing))
	})

	t.Run("InvalidHash", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Get("nonsense")
		assert.ErrorIs(t, err, ErrInvalidHash)
		assert.False(t, s.Exists("nonsense"))
	})

	t.Run("Exists", func(t *testing.T) {
		s, _ := newTestStore(t)

		hash, err := s.Put([]byte("present"))
		require.NoError(t, err)
		assert.True(t, s.Exists(hash))
	})

	t.Run("LargeContentCompressedRoundtrip", func(t *testing.T) {
		s, dir := newTestStore(t)

		// Highly compressible content well above the compression floor
		content := bytes.Repeat([]byte("guardian snapshot engine\n"), 1000)
		hash, err := s.Put(content)
		require.NoError(t, err)

		// Stored payload should be smaller than the original
		info, err := os.Stat(filepath.Join(dir, hash[:2], hash[2:]))
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(len(content)))

		// Fresh store instance, so the read comes from disk, not cache
		s2, err := New(Options{Root: dir, CacheSize: 16})
		require.NoError(t, err)
		got, err := s2.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("RawZstdMagicRoundtrip", func(t *testing.T) {
		s, dir := newTestStore(t)

		// Small enough to be stored raw, but starts with the zstd magic
		// without being a valid frame
		content := append(append([]byte{}, zstdMagic...), []byte("not a real frame")...)
		hash, err := s.Put(content)
		require.NoError(t, err)

		// Fresh instance so the read hits disk and the decode path
		s2, err := New(Options{Root: dir, CacheSize: 16})
		require.NoError(t, err)
		got, err := s2.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("CorruptionScopedToObject", func(t *testing.T) {
		s, dir := newTestStore(t)

		hash, err := s.Put([]byte("will be tampered with"))
		require.NoError(t, err)
		okHash, err := s.Put([]byte("stays intact"))
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(
			filepath.Join(dir, hash[:2], hash[2:]), []byte("tampered"), 0644))

		// New instance so the tampered object is not served from cache
		s2, err := New(Options{Root: dir, CacheSize: 16})
		require.NoError(t, err)

		_, err = s2.Get(hash)
		var corrupt *CorruptionError
		require.True(t, errors.As(err, &corrupt))
		assert.Equal(t, hash, corrupt.Hash)

		// The sibling object is unaffected
		got, err := s2.Get(okHash)
		require.NoError(t, err)
		assert.Equal(t, []byte("stays intact"), got)
	})
}

func TestTreeAndCommitObjects(t *testing.T) {
	s, _ := newTestStore(t)

	blobHash, err := s.Put([]byte("file body"))
	require.NoError(t, err)

	tree := treeWith(t, "file.txt", blobHash)
	treeHash, err := s.PutTree(tree)
	require.NoError(t, err)

	gotTree, err := s.GetTree(treeHash)
	require.NoError(t, err)
	require.Len(t, gotTree.Entries, 1)
	assert.Equal(t, blobHash, gotTree.Entries[0].Hash)
}
