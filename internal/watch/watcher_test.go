package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/ignore"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0755))

	rules, err := ignore.New(ignore.DefaultPatterns())
	require.NoError(t, err)

	w, err := New(dir, rules, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "dep.js"), []byte("x"), 0644))

	drained := map[string]bool{}
	require.Eventually(t, func() bool {
		for _, p := range w.Drain() {
			drained[p] = true
		}
		return drained["tracked.txt"]
	}, 2*time.Second, 10*time.Millisecond)

	// The ignored subtree never produces dirty paths
	assert.False(t, drained["node_modules/dep.js"])
	assert.False(t, drained["node_modules"])
}
