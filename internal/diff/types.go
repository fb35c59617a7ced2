// internal/diff/types.go
package diff

import "errors"

// ErrBinaryFile signals that a line diff was requested on non-text content.
// Callers surface it as "diff not available", not as a failure.
var ErrBinaryFile = errors.New("binary content cannot be diffed")

// ChangeType classifies a file-level change between two commits.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
	Renamed  ChangeType = "renamed"
	Copied   ChangeType = "copied"
)

// FileChange describes one file-level difference between two commits. For
// renames and copies, Path is the old location, NewPath the new one, and
// Similarity holds the content-similarity score in [0,1] that triggered the
// reclassification.
type FileChange struct {
	Path       string     `json:"path"`
	NewPath    string     `json:"new_path,omitempty"`
	Type       ChangeType `json:"type"`
	OldHash    string     `json:"old_hash,omitempty"`
	NewHash    string     `json:"new_hash,omitempty"`
	Similarity float64    `json:"similarity,omitempty"`
}

// LineType indicates whether a line was added, deleted, or is unchanged.
type LineType int

const (
	Unchanged LineType = iota
	LineAdded
	LineDeleted
)

// LineDiff is a single line of a text diff. OldNum and NewNum carry the
// independent line numbering needed for unified-diff rendering; a zero means
// the line has no number on that side.
type LineDiff struct {
	Type    LineType `json:"type"`
	OldNum  int      `json:"old_num"`
	NewNum  int      `json:"new_num"`
	Content string   `json:"content"`
}
