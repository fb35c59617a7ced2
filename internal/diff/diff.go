// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"

	"guardian/internal/store"
)

// DefaultSimilarityThreshold is the minimum content-similarity score at
// which an unmatched delete/add pair is reclassified as a rename or copy.
const DefaultSimilarityThreshold = 0.5

// Engine computes file-level changes between commits and line-level diffs
// between text blobs.
type Engine struct {
	objects   *store.FileStore
	threshold float64
}

// NewEngine creates a diff engine reading objects from the given store.
func NewEngine(objects *store.FileStore) *Engine {
	return &Engine{
		objects:   objects,
		threshold: DefaultSimilarityThreshold,
	}
}

// WithThreshold overrides the rename/copy similarity threshold.
func (e *Engine) WithThreshold(threshold float64) *Engine {
	e.threshold = threshold
	return e
}

// DiffTextFiles computes a line-based diff between two blobs, emitting every
// line with its type and independent old/new numbering. Binary content on
// either side fails with ErrBinaryFile.
func (e *Engine) DiffTextFiles(oldHash, newHash string) ([]LineDiff, error) {
	oldContent, err := e.objects.Get(oldHash)
	if err != nil {
		return nil, fmt.Errorf("getting old blob: %w", err)
	}
	newContent, err := e.objects.Get(newHash)
	if err != nil {
		return nil, fmt.Errorf("getting new blob: %w", err)
	}

	if IsBinary(oldContent) || IsBinary(newContent) {
		return nil, ErrBinaryFile
	}

	return diffLines(splitLines(oldContent), splitLines(newContent)), nil
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// diffLines aligns the two line sequences with a longest-common-subsequence
// matrix and walks it back into a forward-ordered edit script.
func diffLines(oldLines, newLines [][]byte) []LineDiff {
	lcs := buildLCSMatrix(oldLines, newLines)

	// Backtrack from the bottom-right corner; the script comes out reversed
	var reversed []LineDiff
	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && bytes.Equal(oldLines[i-1], newLines[j-1]):
			reversed = append(reversed, LineDiff{
				Type:    Unchanged,
				OldNum:  i,
				NewNum:  j,
				Content: string(oldLines[i-1]),
			})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			reversed = append(reversed, LineDiff{
				Type:    LineAdded,
				NewNum:  j,
				Content: string(newLines[j-1]),
			})
			j--
		default:
			reversed = append(reversed, LineDiff{
				Type:    LineDeleted,
				OldNum:  i,
				Content: string(oldLines[i-1]),
			})
			i--
		}
	}

	lines := make([]LineDiff, len(reversed))
	for k := range reversed {
		lines[k] = reversed[len(reversed)-1-k]
	}
	return lines
}

func buildLCSMatrix(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if bytes.Equal(oldLines[i-1], newLines[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// FormatUnified renders a line diff in a unified-diff-like layout.
func FormatUnified(lines []LineDiff) string {
	var buf bytes.Buffer
	for _, line := range lines {
		switch line.Type {
		case LineAdded:
			buf.WriteString("+ ")
		case LineDeleted:
			buf.WriteString("- ")
		case Unchanged:
			buf.WriteString("  ")
		}
		buf.WriteString(line.Content)
		buf.WriteString("\n")
	}
	return buf.String()
}
