// internal/stash/stash.go
package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"guardian/internal/object"
	"guardian/internal/refs"
	"guardian/internal/repo"
)

const entryPrefix = "stash:"

// Entry describes one shelved snapshot.
type Entry struct {
	Ref       string `json:"ref"`
	Commit    string `json:"commit"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Manager shelves uncommitted working-tree state under stash-namespaced
// refs, outside the main history.
type Manager struct {
	repo   *repo.Repository
	db     *badger.DB
	logger *zap.Logger
}

func New(r *repo.Repository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{repo: r, db: r.DB(), logger: logger}
}

func entryKey(refName string) []byte {
	return []byte(entryPrefix + refName)
}

// Save captures the current working tree as a commit under a fresh stash ref
// and returns the ref name. HEAD and the index are untouched.
func (m *Manager) Save(ctx context.Context, message string) (string, error) {
	commitID, err := m.repo.WriteStashCommit(ctx, message)
	if err != nil {
		return "", fmt.Errorf("capturing stash snapshot: %w", err)
	}

	refName := refs.StashPrefix + uuid.New().String()
	if err := m.repo.UpdateRef(refName, commitID); err != nil {
		return "", fmt.Errorf("creating stash ref: %w", err)
	}

	entry := Entry{
		Ref:       refName,
		Commit:    commitID,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling stash entry: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(refName), data)
	})
	if err != nil {
		return "", fmt.Errorf("storing stash entry: %w", err)
	}

	m.logger.Info("stash saved",
		zap.String("ref", refName),
		zap.String("commit", commitID))
	return refName, nil
}

// List returns all stash entries, newest first.
func (m *Manager) List() ([]Entry, error) {
	var entries []Entry

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing stash entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].Ref > entries[j].Ref
	})
	return entries, nil
}

// Apply overwrites working files with the stashed tree's contents. There is
// no merging: every file in the stashed tree is written out as captured.
func (m *Manager) Apply(refName string) error {
	commitID, err := m.repo.Refs().Resolve(refName)
	if err != nil {
		return fmt.Errorf("resolving stash ref %s: %w", refName, err)
	}

	commit, err := m.repo.Objects().GetCommit(commitID)
	if err != nil {
		return fmt.Errorf("loading stash commit: %w", err)
	}

	if err := m.restoreTree(commit.Tree, ""); err != nil {
		return err
	}

	m.logger.Info("stash applied", zap.String("ref", refName))
	return nil
}

func (m *Manager) restoreTree(treeHash, prefix string) error {
	tree, err := m.repo.Objects().GetTree(treeHash)
	if err != nil {
		return fmt.Errorf("loading tree %s: %w", treeHash, err)
	}

	for _, entry := range tree.Entries {
		relPath := entry.Name
		if prefix != "" {
			relPath = prefix + "/" + entry.Name
		}
		absPath := filepath.Join(m.repo.Root(), filepath.FromSlash(relPath))

		switch entry.Kind {
		case object.KindTree:
			if err := os.MkdirAll(absPath, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", relPath, err)
			}
			if err := m.restoreTree(entry.Hash, relPath); err != nil {
				return err
			}
		case object.KindBlob:
			content, err := m.repo.Objects().Get(entry.Hash)
			if err != nil {
				return fmt.Errorf("loading blob for %s: %w", relPath, err)
			}
			if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", relPath, err)
			}
			if err := os.WriteFile(absPath, content, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", relPath, err)
			}
		}
	}

	return nil
}

// Drop deletes a stash ref and its entry. The referenced commit becomes
// unreachable garbage unless another ref still points at it.
func (m *Manager) Drop(refName string) error {
	if err := m.repo.Refs().Delete(refName); err != nil {
		return fmt.Errorf("deleting stash ref %s: %w", refName, err)
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(refName))
	})
	if err != nil {
		return fmt.Errorf("deleting stash entry: %w", err)
	}

	m.logger.Info("stash dropped", zap.String("ref", refName))
	return nil
}

// Find returns the entry for a ref name, if present.
func (m *Manager) Find(refName string) (Entry, bool, error) {
	var entry Entry
	found := false

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(refName))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading stash entry: %w", err)
	}

	return entry, found, nil
}
