package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/repo"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStatus(t *testing.T) {
	r, err := repo.Init(t.TempDir(), repo.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	scanner := New(r.Root(), r.Index(), r.Rules(), nil)

	t.Run("EverythingUntrackedBeforeFirstSnapshot", func(t *testing.T) {
		writeFile(t, r.Root(), "a.txt", "alpha\n")
		writeFile(t, r.Root(), "dir/b.txt", "beta\n")

		changes, err := scanner.Status(context.Background())
		require.NoError(t, err)
		require.Len(t, changes, 2)
		for _, c := range changes {
			assert.Equal(t, Untracked, c.State)
		}
	})

	t.Run("CleanAfterSnapshot", func(t *testing.T) {
		_, err := r.CreateSnapshot(context.Background(), "baseline", nil)
		require.NoError(t, err)

		changes, err := scanner.Status(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("ReportsAllThreeStates", func(t *testing.T) {
		writeFile(t, r.Root(), "new.txt", "fresh\n")
		writeFile(t, r.Root(), "a.txt", "alpha edited\n")
		require.NoError(t, os.Remove(filepath.Join(r.Root(), "dir", "b.txt")))

		changes, err := scanner.Status(context.Background())
		require.NoError(t, err)

		byPath := map[string]State{}
		for _, c := range changes {
			byPath[c.Path] = c.State
		}
		assert.Equal(t, Untracked, byPath["new.txt"])
		assert.Equal(t, Modified, byPath["a.txt"])
		assert.Equal(t, Deleted, byPath["dir/b.txt"])
		assert.Len(t, changes, 3)
	})

	t.Run("TouchedButIdenticalOmitted", func(t *testing.T) {
		_, err := r.CreateSnapshot(context.Background(), "settle", nil)
		require.NoError(t, err)

		// Rewrite with identical bytes; only the mtime can differ
		writeFile(t, r.Root(), "a.txt", "alpha edited\n")

		changes, err := scanner.Status(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})
}
