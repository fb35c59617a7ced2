// internal/scan/scanner.go
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"guardian/internal/ignore"
	"guardian/internal/index"
	"guardian/internal/object"
)

// State classifies a pending working-tree change relative to the last
// snapshot.
type State string

const (
	Untracked State = "untracked"
	Modified  State = "modified"
	Deleted   State = "deleted"
)

// PendingChange is one entry of a status report. Purely presentational: the
// snapshot engine never consumes it.
type PendingChange struct {
	Path  string `json:"path"`
	State State  `json:"state"`
	Size  int64  `json:"size,omitempty"`
}

// Scanner reports pending changes by comparing the working tree against the
// index's last-snapshot view.
type Scanner struct {
	root   string
	idx    *index.Index
	rules  *ignore.Rules
	logger *zap.Logger
}

func New(root string, idx *index.Index, rules *ignore.Rules, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{root: root, idx: idx, rules: rules, logger: logger}
}

// Status walks the working tree and reports untracked, modified, and deleted
// paths. Unchanged files (size and mtime matching their index entry) are
// omitted without rehashing.
func (s *Scanner) Status(ctx context.Context) ([]PendingChange, error) {
	var changes []PendingChange
	seen := make(map[string]bool)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			if s.rules.IsIgnored(relPath) {
				return fs.SkipDir
			}
			return nil
		}
		if s.rules.IsIgnored(relPath) {
			return nil
		}

		seen[relPath] = true

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("stat failed", zap.String("path", relPath), zap.Error(err))
			return nil
		}

		entry, ok, err := s.idx.TryGet(relPath)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			changes = append(changes, PendingChange{Path: relPath, State: Untracked, Size: info.Size()})
		case entry.Size != info.Size() || !entry.ModTime.Equal(info.ModTime()):
			if changed, err := s.contentChanged(path, entry); err == nil && !changed {
				return nil // touched but byte-identical
			}
			changes = append(changes, PendingChange{Path: relPath, State: Modified, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working tree: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Index entries whose files vanished are deletions
	paths, err := s.idx.Paths()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if seen[path] {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(path))); os.IsNotExist(err) {
			changes = append(changes, PendingChange{Path: path, State: Deleted})
		}
	}

	return changes, nil
}

func (s *Scanner) contentChanged(absPath string, entry index.Entry) (bool, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, err
	}
	return object.HashContent(content) != entry.Hash, nil
}
