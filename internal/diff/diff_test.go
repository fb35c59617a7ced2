package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/object"
	"guardian/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.FileStore) {
	s, err := store.New(store.Options{Root: t.TempDir(), CacheSize: 16})
	require.NoError(t, err)
	return NewEngine(s), s
}

// writeCommit stores blobs, a flat tree, and a commit for path -> content.
func writeCommit(t *testing.T, s *store.FileStore, files map[string]string, parents []string) string {
	t.Helper()

	tree := &object.Tree{}
	for path, content := range files {
		hash, err := s.Put([]byte(content))
		require.NoError(t, err)
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: path, Kind: object.KindBlob, Hash: hash,
		})
	}
	treeHash, err := s.PutTree(tree)
	require.NoError(t, err)

	commitHash, err := s.PutCommit(&object.Commit{
		Tree:      treeHash,
		Parents:   parents,
		Author:    "tester",
		Message:   "test commit",
		Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)
	return commitHash
}

func TestDiffTextFiles(t *testing.T) {
	t.Run("IdenticalBlobsAllUnchanged", func(t *testing.T) {
		e, s := newTestEngine(t)

		hash, err := s.Put([]byte("line one\nline two\nline three\n"))
		require.NoError(t, err)

		lines, err := e.DiffTextFiles(hash, hash)
		require.NoError(t, err)
		require.Len(t, lines, 3)
		for i, line := range lines {
			assert.Equal(t, Unchanged, line.Type)
			assert.Equal(t, i+1, line.OldNum)
			assert.Equal(t, i+1, line.NewNum)
		}
	})

	t.Run("AddAndDeleteNumbering", func(t *testing.T) {
		e, s := newTestEngine(t)

		oldHash, err := s.Put([]byte("a\nb\nc\n"))
		require.NoError(t, err)
		newHash, err := s.Put([]byte("a\nx\nc\n"))
		require.NoError(t, err)

		lines, err := e.DiffTextFiles(oldHash, newHash)
		require.NoError(t, err)

		// a unchanged, b deleted, x added, c unchanged
		require.Len(t, lines, 4)
		assert.Equal(t, LineDiff{Type: Unchanged, OldNum: 1, NewNum: 1, Content: "a"}, lines[0])

		var added, deleted *LineDiff
		for i := range lines {
			switch lines[i].Type {
			case LineAdded:
				added = &lines[i]
			case LineDeleted:
				deleted = &lines[i]
			}
		}
		require.NotNil(t, added)
		require.NotNil(t, deleted)
		assert.Equal(t, "x", added.Content)
		assert.Equal(t, 2, added.NewNum)
		assert.Zero(t, added.OldNum)
		assert.Equal(t, "b", deleted.Content)
		assert.Equal(t, 2, deleted.OldNum)
		assert.Zero(t, deleted.NewNum)

		assert.Equal(t, LineDiff{Type: Unchanged, OldNum: 3, NewNum: 3, Content: "c"}, lines[3])
	})

	t.Run("BinaryContentRejected", func(t *testing.T) {
		e, s := newTestEngine(t)

		textHash, err := s.Put([]byte("plain text\n"))
		require.NoError(t, err)
		binHash, err := s.Put([]byte{0x00, 0x01, 0x02, 'P', 'K'})
		require.NoError(t, err)

		_, err = e.DiffTextFiles(textHash, binHash)
		assert.ErrorIs(t, err, ErrBinaryFile)
	})
}

func TestFormatUnified(t *testing.T) {
	e, s := newTestEngine(t)

	oldHash, err := s.Put([]byte("keep\ndrop\n"))
	require.NoError(t, err)
	newHash, err := s.Put([]byte("keep\nadd\n"))
	require.NoError(t, err)

	lines, err := e.DiffTextFiles(oldHash, newHash)
	require.NoError(t, err)

	assert.Equal(t, "  keep\n- drop\n+ add\n", FormatUnified(lines))
}

func TestIsBinary(t *testing.T) {
	assert.True(t, IsBinary([]byte{'a', 0x00, 'b'}))
	assert.False(t, IsBinary([]byte("just text")))
	assert.True(t, IsBinaryPath("image.PNG"))
	assert.False(t, IsBinaryPath("notes.txt"))
}

func TestCompareCommits(t *testing.T) {
	t.Run("SingleModification", func(t *testing.T) {
		e, s := newTestEngine(t)

		oldID := writeCommit(t, s, map[string]string{
			"a.txt": "alpha\n", "b.txt": "beta\n", "c.txt": "gamma\n",
		}, nil)
		newID := writeCommit(t, s, map[string]string{
			"a.txt": "alpha\n", "b.txt": "beta changed\n", "c.txt": "gamma\n",
		}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "b.txt", changes[0].Path)
		assert.Equal(t, Modified, changes[0].Type)
	})

	t.Run("IdenticalContentRename", func(t *testing.T) {
		e, s := newTestEngine(t)

		content := "package main\n\nfunc main() {}\n"
		oldID := writeCommit(t, s, map[string]string{"old_name.go": content}, nil)
		newID := writeCommit(t, s, map[string]string{"new_name.go": content}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, Renamed, changes[0].Type)
		assert.Equal(t, "old_name.go", changes[0].Path)
		assert.Equal(t, "new_name.go", changes[0].NewPath)
		assert.Equal(t, 1.0, changes[0].Similarity)
	})

	t.Run("SimilarContentRename", func(t *testing.T) {
		e, s := newTestEngine(t)

		oldID := writeCommit(t, s, map[string]string{
			"util.go": "line1\nline2\nline3\nline4\nline5\n",
		}, nil)
		newID := writeCommit(t, s, map[string]string{
			"helpers.go": "line1\nline2\nline3\nline4\nchanged\n",
		}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, Renamed, changes[0].Type)
		assert.GreaterOrEqual(t, changes[0].Similarity, DefaultSimilarityThreshold)
		assert.Less(t, changes[0].Similarity, 1.0)
	})

	t.Run("DissimilarContentStaysAddDelete", func(t *testing.T) {
		e, s := newTestEngine(t)

		oldID := writeCommit(t, s, map[string]string{"gone.txt": "completely\ndifferent\n"}, nil)
		newID := writeCommit(t, s, map[string]string{"fresh.txt": "nothing\nshared\nhere\n"}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)
		require.Len(t, changes, 2)

		types := map[ChangeType]bool{}
		for _, c := range changes {
			types[c.Type] = true
		}
		assert.True(t, types[Added])
		assert.True(t, types[Deleted])
	})

	t.Run("CopyOfUnchangedFile", func(t *testing.T) {
		e, s := newTestEngine(t)

		content := "shared body\n"
		oldID := writeCommit(t, s, map[string]string{"origin.txt": content}, nil)
		newID := writeCommit(t, s, map[string]string{
			"origin.txt": content, "duplicate.txt": content,
		}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, Copied, changes[0].Type)
		assert.Equal(t, "origin.txt", changes[0].Path)
		assert.Equal(t, "duplicate.txt", changes[0].NewPath)
		assert.Equal(t, 1.0, changes[0].Similarity)
	})

	t.Run("EmptyOldComparesAgainstEmptyTree", func(t *testing.T) {
		e, s := newTestEngine(t)

		newID := writeCommit(t, s, map[string]string{"only.txt": "content\n"}, nil)

		changes, err := e.CompareCommits("", newID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, Added, changes[0].Type)
	})

	t.Run("ChangesReconstructNewTree", func(t *testing.T) {
		e, s := newTestEngine(t)

		oldID := writeCommit(t, s, map[string]string{
			"keep.txt":   "kept\n",
			"edit.txt":   "before\n",
			"remove.txt": "dropped\n",
		}, nil)
		newID := writeCommit(t, s, map[string]string{
			"keep.txt":  "kept\n",
			"edit.txt":  "after\n",
			"added.txt": "brand new\n",
		}, []string{oldID})

		changes, err := e.CompareCommits(oldID, newID)
		require.NoError(t, err)

		// Apply the change set to the old tree as a patch
		oldCommit, err := s.GetCommit(oldID)
		require.NoError(t, err)
		patched, err := e.flattenTree(oldCommit.Tree, "")
		require.NoError(t, err)

		for _, c := range changes {
			switch c.Type {
			case Added:
				patched[c.Path] = c.NewHash
			case Modified:
				patched[c.Path] = c.NewHash
			case Deleted:
				delete(patched, c.Path)
			case Renamed:
				delete(patched, c.Path)
				patched[c.NewPath] = c.NewHash
			case Copied:
				patched[c.NewPath] = c.NewHash
			}
		}

		newCommit, err := s.GetCommit(newID)
		require.NoError(t, err)
		want, err := e.flattenTree(newCommit.Tree, "")
		require.NoError(t, err)
		assert.Equal(t, want, patched)
	})
}
