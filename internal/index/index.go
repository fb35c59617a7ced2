// internal/index/index.go
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const entryPrefix = "index:"

// Entry records the last-known state of a tracked file as of the most recent
// successful snapshot. It is a change-detection cache, never ground truth:
// when size and mtime match, the recorded blob hash is reused without
// rereading the file.
type Entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Hash    string    `json:"hash"`
}

// Index persists per-path entries in badger.
type Index struct {
	db *badger.DB
}

func New(db *badger.DB) *Index {
	return &Index{db: db}
}

func entryKey(path string) []byte {
	return []byte(entryPrefix + path)
}

// TryGet returns the recorded entry for path, with ok=false on a miss.
func (ix *Index) TryGet(path string) (Entry, bool, error) {
	var entry Entry

	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if err == badger.ErrKeyNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("retrieving index entry: %w", err)
	}

	return entry, true, nil
}

// Matches reports whether the recorded entry for path still describes a file
// with the given size and mtime.
func (ix *Index) Matches(path string, size int64, modTime time.Time) (string, bool, error) {
	entry, ok, err := ix.TryGet(path)
	if err != nil || !ok {
		return "", false, err
	}
	if entry.Size == size && entry.ModTime.Equal(modTime) {
		return entry.Hash, true, nil
	}
	return "", false, nil
}

// Apply replaces the index contents in a single transaction: updated entries
// are written, removed paths are deleted. Called only after a snapshot has
// fully succeeded.
func (ix *Index) Apply(updated []Entry, removed []string) error {
	return ix.db.Update(func(txn *badger.Txn) error {
		for _, entry := range updated {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshaling entry for %s: %w", entry.Path, err)
			}
			if err := txn.Set(entryKey(entry.Path), data); err != nil {
				return fmt.Errorf("storing entry for %s: %w", entry.Path, err)
			}
		}
		for _, path := range removed {
			if err := txn.Delete(entryKey(path)); err != nil {
				return fmt.Errorf("deleting entry for %s: %w", path, err)
			}
		}
		return nil
	})
}

// Paths lists every path with a recorded entry.
func (ix *Index) Paths() ([]string, error) {
	var paths []string

	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			paths = append(paths, string(bytes.TrimPrefix(key, []byte(entryPrefix))))
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing index entries: %w", err)
	}
	return paths, nil
}
