// internal/refs/refs.go
package refs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"guardian/internal/object"
)

const (
	// Head is the distinguished ref pointing at the tip of the linear
	// snapshot history.
	Head = "HEAD"

	// StashPrefix namespaces refs that hold shelved snapshots outside the
	// main history.
	StashPrefix = "stash/"

	refPrefix = "ref:"
)

var (
	ErrRefNotFound = errors.New("ref not found")
	ErrInvalidName = errors.New("invalid ref name")
)

// Store persists name -> commit-hash pointers. Refs are the only mutable
// state in the repository; each update replaces the pointer atomically in a
// single transaction.
type Store struct {
	db *badger.DB
}

func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func refKey(name string) []byte {
	return []byte(refPrefix + name)
}

// Resolve returns the commit hash a ref points at, or ErrRefNotFound.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}

	var hash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			hash = string(val)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return "", ErrRefNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving ref %s: %w", name, err)
	}

	return hash, nil
}

// ResolveHead returns the commit HEAD points at, or "" for a repository with
// no history yet.
func (s *Store) ResolveHead() (string, error) {
	hash, err := s.Resolve(Head)
	if err == ErrRefNotFound {
		return "", nil
	}
	return hash, err
}

// Update atomically points a ref at a commit hash.
func (s *Store) Update(name, commitHash string) error {
	if name == "" {
		return ErrInvalidName
	}
	if !object.IsValidHash(commitHash) {
		return fmt.Errorf("updating ref %s: %w", name, ErrInvalidName)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(refKey(name), []byte(commitHash))
	})
}

// Delete removes a ref. Deleting an absent ref is an error.
func (s *Store) Delete(name string) error {
	if name == "" {
		return ErrInvalidName
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(refKey(name))
		if err == badger.ErrKeyNotFound {
			return ErrRefNotFound
		}
		if err != nil {
			return err
		}
		return txn.Delete(refKey(name))
	})
}

// List returns every ref whose name starts with prefix, mapped to its commit
// hash. An empty prefix lists all refs.
func (s *Store) List(prefix string) (map[string]string, error) {
	result := make(map[string]string)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(refPrefix + prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(bytes.TrimPrefix(item.Key(), []byte(refPrefix)))
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			err := item.Value(func(val []byte) error {
				result[name] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing refs: %w", err)
	}
	return result, nil
}
