// internal/object/object.go
package object

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// EntryKind distinguishes tree entries pointing at blobs from subtrees.
type EntryKind string

const (
	KindBlob EntryKind = "blob"
	KindTree EntryKind = "tree"
)

// TreeEntry maps a name inside a directory to the hash of its content.
type TreeEntry struct {
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
	Hash string    `json:"hash"`
}

// Tree is an immutable directory snapshot. Entries are kept sorted by name
// so identical directory contents always serialize, and hash, identically.
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// Commit is an immutable snapshot node.
type Commit struct {
	Tree      string   `json:"tree"`
	Parents   []string `json:"parents,omitempty"`
	Author    string   `json:"author"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
}

// HashContent returns the hex-encoded SHA-256 digest of content. Every
// object's identity is the hash of its canonical bytes.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// IsValidHash reports whether s looks like a hex SHA-256 digest.
func IsValidHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Canonical returns the deterministic serialization of the tree.
func (t *Tree) Canonical() ([]byte, error) {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshaling tree: %w", err)
	}
	return data, nil
}

// Canonical returns the deterministic serialization of the commit.
func (c *Commit) Canonical() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling commit: %w", err)
	}
	return data, nil
}

// DecodeTree parses a tree object from its stored bytes.
func DecodeTree(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshaling tree: %w", err)
	}
	return &t, nil
}

// DecodeCommit parses a commit object from its stored bytes.
func DecodeCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling commit: %w", err)
	}
	return &c, nil
}
