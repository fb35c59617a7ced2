// internal/diff/compare.go
package diff

import (
	"fmt"
	"sort"

	"guardian/internal/object"
)

// CompareCommits returns the file-level changes between two commits.
// Unchanged paths are omitted. Candidate deletes and adds are reclassified
// as renames or copies when their content similarity clears the engine's
// threshold. An empty oldID compares against the empty tree.
func (e *Engine) CompareCommits(oldID, newID string) ([]FileChange, error) {
	oldFiles := map[string]string{}
	if oldID != "" {
		commit, err := e.objects.GetCommit(oldID)
		if err != nil {
			return nil, fmt.Errorf("loading old commit: %w", err)
		}
		if oldFiles, err = e.flattenTree(commit.Tree, ""); err != nil {
			return nil, err
		}
	}

	newCommit, err := e.objects.GetCommit(newID)
	if err != nil {
		return nil, fmt.Errorf("loading new commit: %w", err)
	}
	newFiles, err := e.flattenTree(newCommit.Tree, "")
	if err != nil {
		return nil, err
	}

	var changes []FileChange
	adds := map[string]string{}
	dels := map[string]string{}
	unchanged := map[string]string{}

	for path, newHash := range newFiles {
		oldHash, ok := oldFiles[path]
		switch {
		case !ok:
			adds[path] = newHash
		case oldHash != newHash:
			changes = append(changes, FileChange{
				Path:    path,
				Type:    Modified,
				OldHash: oldHash,
				NewHash: newHash,
			})
		default:
			unchanged[path] = oldHash
		}
	}
	for path, oldHash := range oldFiles {
		if _, ok := newFiles[path]; !ok {
			dels[path] = oldHash
		}
	}

	changes = append(changes, e.detectRenames(adds, dels, unchanged)...)

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}

// flattenTree recursively resolves a tree graph into path -> blob hash.
func (e *Engine) flattenTree(treeHash, prefix string) (map[string]string, error) {
	tree, err := e.objects.GetTree(treeHash)
	if err != nil {
		return nil, fmt.Errorf("loading tree %s: %w", treeHash, err)
	}

	files := make(map[string]string)
	for _, entry := range tree.Entries {
		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + entry.Name
		}

		switch entry.Kind {
		case object.KindBlob:
			files[path] = entry.Hash
		case object.KindTree:
			sub, err := e.flattenTree(entry.Hash, path)
			if err != nil {
				return nil, err
			}
			for p, h := range sub {
				files[p] = h
			}
		}
	}

	return files, nil
}

type renameCandidate struct {
	oldPath string
	newPath string
	score   float64
}

// detectRenames reclassifies delete/add pairs as renames, and adds that
// duplicate a surviving unchanged file as copies. Cost is O(deletes x adds),
// bounded by the number of changed files rather than tree size.
func (e *Engine) detectRenames(adds, dels, unchanged map[string]string) []FileChange {
	var changes []FileChange

	matchedAdds := map[string]bool{}
	matchedDels := map[string]bool{}

	// Pass 1: byte-identical content is a rename with similarity 1.0
	hashToDel := map[string]string{}
	for path, hash := range dels {
		hashToDel[hash] = path
	}
	for _, newPath := range sortedPaths(adds) {
		hash := adds[newPath]
		if oldPath, ok := hashToDel[hash]; ok && !matchedDels[oldPath] {
			changes = append(changes, FileChange{
				Path:       oldPath,
				NewPath:    newPath,
				Type:       Renamed,
				OldHash:    hash,
				NewHash:    hash,
				Similarity: 1.0,
			})
			matchedAdds[newPath] = true
			matchedDels[oldPath] = true
		}
	}

	// Pass 2: score remaining pairs and greedily take the best matches
	var candidates []renameCandidate
	for _, oldPath := range sortedPaths(dels) {
		if matchedDels[oldPath] {
			continue
		}
		for _, newPath := range sortedPaths(adds) {
			if matchedAdds[newPath] {
				continue
			}
			score := e.similarity(dels[oldPath], adds[newPath])
			if score >= e.threshold {
				candidates = append(candidates, renameCandidate{oldPath, newPath, score})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].oldPath < candidates[j].oldPath
	})
	for _, c := range candidates {
		if matchedDels[c.oldPath] || matchedAdds[c.newPath] {
			continue
		}
		changes = append(changes, FileChange{
			Path:       c.oldPath,
			NewPath:    c.newPath,
			Type:       Renamed,
			OldHash:    dels[c.oldPath],
			NewHash:    adds[c.newPath],
			Similarity: c.score,
		})
		matchedDels[c.oldPath] = true
		matchedAdds[c.newPath] = true
	}

	// Pass 3: an add duplicating a file that survived unchanged is a copy
	hashToUnchanged := map[string]string{}
	for path, hash := range unchanged {
		hashToUnchanged[hash] = path
	}
	for _, newPath := range sortedPaths(adds) {
		if matchedAdds[newPath] {
			continue
		}
		hash := adds[newPath]
		if oldPath, ok := hashToUnchanged[hash]; ok {
			changes = append(changes, FileChange{
				Path:       oldPath,
				NewPath:    newPath,
				Type:       Copied,
				OldHash:    hash,
				NewHash:    hash,
				Similarity: 1.0,
			})
			matchedAdds[newPath] = true
		}
	}

	// Everything left stays a plain add or delete
	for _, path := range sortedPaths(adds) {
		if !matchedAdds[path] {
			changes = append(changes, FileChange{Path: path, Type: Added, NewHash: adds[path]})
		}
	}
	for _, path := range sortedPaths(dels) {
		if !matchedDels[path] {
			changes = append(changes, FileChange{Path: path, Type: Deleted, OldHash: dels[path]})
		}
	}

	return changes
}

// similarity scores two blobs with a Dice coefficient over their unique line
// sets: 2*|common| / (|old|+|new|). Binary or unreadable content scores 0.
func (e *Engine) similarity(oldHash, newHash string) float64 {
	if oldHash == newHash {
		return 1.0
	}

	oldContent, err := e.objects.Get(oldHash)
	if err != nil {
		return 0
	}
	newContent, err := e.objects.Get(newHash)
	if err != nil {
		return 0
	}
	if IsBinary(oldContent) || IsBinary(newContent) {
		return 0
	}

	oldSet := lineSet(oldContent)
	newSet := lineSet(newContent)
	if len(oldSet) == 0 && len(newSet) == 0 {
		return 1.0
	}
	if len(oldSet) == 0 || len(newSet) == 0 {
		return 0
	}

	common := 0
	for line := range oldSet {
		if newSet[line] {
			common++
		}
	}

	return 2.0 * float64(common) / float64(len(oldSet)+len(newSet))
}

func lineSet(content []byte) map[string]bool {
	set := make(map[string]bool)
	for _, line := range splitLines(content) {
		set[string(line)] = true
	}
	return set
}

func sortedPaths(m map[string]string) []string {
	paths := make([]string, 0, len(m))
	for path := range m {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
