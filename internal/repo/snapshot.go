// internal/repo/snapshot.go
package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"guardian/internal/index"
	"guardian/internal/object"
	"guardian/internal/refs"
	"guardian/internal/validate"
)

// Progress reports snapshot progress as a completed fraction in [0,1] and a
// human-readable message.
type Progress func(fraction float64, message string)

// Result reports the outcome of a snapshot attempt. CommitID is empty when
// the validation gate blocked the snapshot; Blocked then carries the issues.
// Partial is set when individual files were skipped over I/O errors.
type Result struct {
	CommitID string
	Partial  bool
	Skipped  []string
	Blocked  []validate.Issue
}

// stagedTree is everything a snapshot computed before touching shared state.
type stagedTree struct {
	treeHash string
	entries  []index.Entry
	seen     map[string]bool
	skipped  []string
}

// CreateSnapshot captures the working tree as a new commit and advances
// HEAD. Steps: walk the tree, hash changed files (reusing index entries for
// unchanged ones), build tree objects bottom-up, write the commit, consult
// the validation gate, and only then move HEAD and persist the index. A
// crash or cancellation before that final step leaves the repository exactly
// as it was; the new objects remain as unreferenced garbage, never
// corrupting reachable state.
//
// At most one snapshot may run per repository instance; a concurrent call
// fails fast with ErrConcurrentOperation.
func (r *Repository) CreateSnapshot(ctx context.Context, message string, progress Progress) (*Result, error) {
	if !r.snapshotting.CompareAndSwap(false, true) {
		return nil, ErrConcurrentOperation
	}
	defer r.snapshotting.Store(false)

	if progress == nil {
		progress = func(float64, string) {}
	}

	head, err := r.ResolveHead()
	if err != nil {
		return nil, err
	}

	staged, err := r.writeTree(ctx, progress)
	if err != nil {
		return nil, err
	}

	var parents []string
	if head != "" {
		parents = append(parents, head)
	}

	progress(0.9, "writing commit")
	commitID, err := r.CreateCommit(staged.treeHash, parents, message)
	if err != nil {
		return nil, fmt.Errorf("writing commit: %w", err)
	}

	// Nothing visible has changed yet; the gate and cancellation below can
	// still abandon the snapshot freely.
	if r.validator != nil {
		changes, err := r.engine.CompareCommits(head, commitID)
		if err != nil {
			return nil, fmt.Errorf("computing pending changes: %w", err)
		}
		issues, err := r.validator.ValidatePendingChanges(ctx, changes)
		if err != nil {
			return nil, fmt.Errorf("validating pending changes: %w", err)
		}
		if validate.HasBlocking(issues) {
			r.logger.Info("snapshot blocked by validation",
				zap.Int("issues", len(issues)))
			return &Result{Blocked: issues}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The only mutation of shared state happens here
	if err := r.refStore.Update(refs.Head, commitID); err != nil {
		return nil, fmt.Errorf("moving HEAD: %w", err)
	}

	removed, err := r.removedPaths(staged.seen)
	if err != nil {
		return nil, err
	}
	if err := r.idx.Apply(staged.entries, removed); err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	progress(1.0, "snapshot complete")
	r.logger.Info("snapshot created",
		zap.String("commit", commitID),
		zap.Int("files", len(staged.seen)),
		zap.Bool("partial", len(staged.skipped) > 0))

	return &Result{
		CommitID: commitID,
		Partial:  len(staged.skipped) > 0,
		Skipped:  staged.skipped,
	}, nil
}

// WriteStashCommit captures the working tree as a commit without moving HEAD
// or touching the index. It shares the snapshot machinery, including the
// single-operation guard.
func (r *Repository) WriteStashCommit(ctx context.Context, message string) (string, error) {
	if !r.snapshotting.CompareAndSwap(false, true) {
		return "", ErrConcurrentOperation
	}
	defer r.snapshotting.Store(false)

	staged, err := r.writeTree(ctx, func(float64, string) {})
	if err != nil {
		return "", err
	}

	head, err := r.ResolveHead()
	if err != nil {
		return "", err
	}
	var parents []string
	if head != "" {
		parents = append(parents, head)
	}

	return r.CreateCommit(staged.treeHash, parents, message)
}

// writeTree walks the tracked tree, hashes files, and writes blob and tree
// objects. It mutates nothing outside the add-only object store.
func (r *Repository) writeTree(ctx context.Context, progress Progress) (*stagedTree, error) {
	progress(0, "scanning working tree")

	files, err := r.collectFiles(ctx)
	if err != nil {
		return nil, err
	}

	staged := &stagedTree{seen: make(map[string]bool)}
	blobs := make(map[string]string) // path -> blob hash

	for i, relPath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		absPath := filepath.Join(r.root, relPath)
		info, err := os.Stat(absPath)
		if err != nil {
			r.logger.Warn("skipping unreadable file",
				zap.String("path", relPath), zap.Error(err))
			staged.skipped = append(staged.skipped, relPath)
			continue
		}

		hash, ok, err := r.idx.Matches(relPath, info.Size(), info.ModTime())
		if err != nil {
			return nil, err
		}
		if ok && r.objects.Exists(hash) {
			// Size and mtime unchanged since the last snapshot; reuse
			// the recorded blob hash without rereading the file.
			blobs[relPath] = hash
			staged.seen[relPath] = true
			staged.entries = append(staged.entries, index.Entry{
				Path: relPath, Size: info.Size(), ModTime: info.ModTime(), Hash: hash,
			})
			continue
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			r.logger.Warn("skipping unreadable file",
				zap.String("path", relPath), zap.Error(err))
			staged.skipped = append(staged.skipped, relPath)
			continue
		}

		hash, err = r.objects.Put(content)
		if err != nil {
			return nil, fmt.Errorf("storing blob for %s: %w", relPath, err)
		}

		blobs[relPath] = hash
		staged.seen[relPath] = true
		staged.entries = append(staged.entries, index.Entry{
			Path: relPath, Size: info.Size(), ModTime: info.ModTime(), Hash: hash,
		})

		progress(0.8*float64(i+1)/float64(len(files)), "hashed "+relPath)
	}

	progress(0.85, "writing trees")
	treeHash, err := r.buildTrees(blobs)
	if err != nil {
		return nil, err
	}
	staged.treeHash = treeHash

	return staged, nil
}

// collectFiles lists tracked file paths, skipping ignored subtrees without
// descending into them.
func (r *Repository) collectFiles(ctx context.Context) ([]string, error) {
	var files []string

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		relPath, err := filepath.Rel(r.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			if d.Name() == DirName || r.rules.IsIgnored(relPath) {
				return fs.SkipDir
			}
			return nil
		}

		if r.rules.IsIgnored(relPath) {
			return nil
		}

		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working tree: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// treeNode mirrors one working directory while trees are assembled bottom-up.
type treeNode struct {
	files map[string]string    // name -> blob hash
	dirs  map[string]*treeNode // name -> subtree
}

func newTreeNode() *treeNode {
	return &treeNode{
		files: make(map[string]string),
		dirs:  make(map[string]*treeNode),
	}
}

// buildTrees assembles tree objects mirroring the directory structure and
// stores them child-first, returning the root tree hash.
func (r *Repository) buildTrees(blobs map[string]string) (string, error) {
	root := newTreeNode()

	for path, hash := range blobs {
		node := root
		parts := strings.Split(path, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files[parts[len(parts)-1]] = hash
	}

	return r.storeTree(root)
}

func (r *Repository) storeTree(node *treeNode) (string, error) {
	tree := &object.Tree{}

	for name, child := range node.dirs {
		hash, err := r.storeTree(child)
		if err != nil {
			return "", err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name, Kind: object.KindTree, Hash: hash,
		})
	}
	for name, hash := range node.files {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name, Kind: object.KindBlob, Hash: hash,
		})
	}

	return r.objects.PutTree(tree)
}

// removedPaths lists index entries whose files were not seen by the walk.
func (r *Repository) removedPaths(seen map[string]bool) ([]string, error) {
	paths, err := r.idx.Paths()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range paths {
		if !seen[path] {
			removed = append(removed, path)
		}
	}
	return removed, nil
}
