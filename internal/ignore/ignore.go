// internal/ignore/ignore.go
package ignore

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns excludes the directories no snapshot should descend into.
func DefaultPatterns() []string {
	return []string{
		".git",
		".guardian",
		"node_modules",
		"vendor",
		"dist",
		"build",
		".*",
	}
}

// Rules matches repository-relative paths against glob patterns. A pattern
// that matches a directory excludes its entire subtree.
type Rules struct {
	raw      []string
	matchers []glob.Glob
}

// New compiles the given patterns. Patterns use '/' as the separator
// regardless of platform.
func New(patterns []string) (*Rules, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", pattern, err)
		}
		matchers = append(matchers, g)
	}

	return &Rules{raw: patterns, matchers: matchers}, nil
}

// IsIgnored reports whether path, or any of its ancestor directories, matches
// an ignore pattern. Matching an ancestor means the whole subtree is
// excluded, so a scanner can skip descending into it.
func (r *Rules) IsIgnored(path string) bool {
	if path == "" || path == "." {
		return false
	}

	path = filepath.ToSlash(path)

	// Check the path itself and every ancestor prefix
	parts := strings.Split(path, "/")
	for i := 1; i <= len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		for _, g := range r.matchers {
			if g.Match(prefix) || g.Match(parts[i-1]) {
				return true
			}
		}
	}

	return false
}

// Patterns returns the raw pattern list the rules were compiled from.
func (r *Rules) Patterns() []string {
	return r.raw
}
