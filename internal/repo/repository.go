// internal/repo/repository.go
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"guardian/internal/diff"
	"guardian/internal/ignore"
	"guardian/internal/index"
	"guardian/internal/object"
	"guardian/internal/refs"
	"guardian/internal/store"
	"guardian/internal/validate"
)

// DirName is the repository directory created inside the tracked project.
const DirName = ".guardian"

var (
	// ErrConcurrentOperation is returned when a second mutating call is
	// attempted while one is in flight. Callers should back off and retry.
	ErrConcurrentOperation = errors.New("another snapshot operation is in progress")

	ErrNotARepository = errors.New("guardian repository not found")
)

// Options configures a Repository.
type Options struct {
	Author         string
	IgnorePatterns []string
	Validator      validate.Validator
	Logger         *zap.Logger
	CacheSize      int
	Compression    store.CompressionOptions
	Threshold      float64 // rename/copy similarity threshold; 0 = default
	InMemory       bool    // keep metadata in memory, for tests
}

// Repository owns the refs and orchestrates snapshot creation over a working
// tree. It is an explicit handle constructed once and passed to the
// components that need it; lifecycle belongs to the embedding application.
type Repository struct {
	root      string
	db        *badger.DB
	objects   *store.FileStore
	idx       *index.Index
	refStore  *refs.Store
	rules     *ignore.Rules
	engine    *diff.Engine
	validator validate.Validator
	logger    *zap.Logger
	author    string

	snapshotting atomic.Bool
}

// Init creates the repository directory inside root and opens a handle.
func Init(root string, opts Options) (*Repository, error) {
	if err := os.MkdirAll(filepath.Join(root, DirName), 0755); err != nil {
		return nil, fmt.Errorf("creating repository directory: %w", err)
	}
	return Open(root, opts)
}

// Open opens an existing repository rooted at root.
func Open(root string, opts Options) (*Repository, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	guardianDir := filepath.Join(root, DirName)
	if _, err := os.Stat(guardianDir); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotARepository
		}
		return nil, fmt.Errorf("checking repository directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	badgerOpts := badger.DefaultOptions(filepath.Join(guardianDir, "db"))
	badgerOpts.Logger = nil
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
		badgerOpts.Dir = ""
		badgerOpts.ValueDir = ""
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	objects, err := store.New(store.Options{
		Root:        filepath.Join(guardianDir, "objects"),
		CacheSize:   opts.CacheSize,
		Compression: opts.Compression,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening object store: %w", err)
	}

	patterns := opts.IgnorePatterns
	if patterns == nil {
		patterns = ignore.DefaultPatterns()
	}
	rules, err := ignore.New(patterns)
	if err != nil {
		db.Close()
		return nil, err
	}

	engine := diff.NewEngine(objects)
	if opts.Threshold > 0 {
		engine = engine.WithThreshold(opts.Threshold)
	}

	author := opts.Author
	if author == "" {
		author = "guardian"
	}

	return &Repository{
		root:      root,
		db:        db,
		objects:   objects,
		idx:       index.New(db),
		refStore:  refs.New(db),
		rules:     rules,
		engine:    engine,
		validator: opts.Validator,
		logger:    logger,
		author:    author,
	}, nil
}

// FindRoot searches upward from startDir for a directory containing the
// repository directory.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, DirName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNotARepository
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Root() string              { return r.root }
func (r *Repository) Objects() *store.FileStore { return r.objects }
func (r *Repository) Index() *index.Index       { return r.idx }
func (r *Repository) Refs() *refs.Store         { return r.refStore }
func (r *Repository) Rules() *ignore.Rules      { return r.rules }
func (r *Repository) Diff() *diff.Engine        { return r.engine }
func (r *Repository) DB() *badger.DB            { return r.db }
func (r *Repository) Author() string            { return r.author }

// ResolveHead returns the commit hash HEAD points at, or "" for a repository
// with no history yet.
func (r *Repository) ResolveHead() (string, error) {
	return r.refStore.ResolveHead()
}

// UpdateRef atomically points a ref at a commit.
func (r *Repository) UpdateRef(name, commitHash string) error {
	return r.refStore.Update(name, commitHash)
}

// CreateCommit builds and stores a commit object. It does not move any ref.
// Parents must already be present in the store: since a commit's hash is
// computed only from already-stored children, the history graph is acyclic
// by construction.
func (r *Repository) CreateCommit(treeHash string, parents []string, message string) (string, error) {
	if !r.objects.Exists(treeHash) {
		return "", fmt.Errorf("tree %s: %w", treeHash, store.ErrObjectNotFound)
	}
	for _, parent := range parents {
		if !r.objects.Exists(parent) {
			return "", fmt.Errorf("parent %s: %w", parent, store.ErrObjectNotFound)
		}
	}

	commit := &object.Commit{
		Tree:      treeHash,
		Parents:   parents,
		Author:    r.author,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	return r.objects.PutCommit(commit)
}

// CommitInfo pairs a commit hash with its decoded object.
type CommitInfo struct {
	ID string
	*object.Commit
}

// History walks the first-parent chain starting at from (HEAD when empty),
// newest first, up to limit commits. A limit of 0 means no limit.
func (r *Repository) History(from string, limit int) ([]CommitInfo, error) {
	if from == "" {
		head, err := r.ResolveHead()
		if err != nil {
			return nil, err
		}
		from = head
	}

	var history []CommitInfo
	for from != "" {
		if limit > 0 && len(history) >= limit {
			break
		}

		commit, err := r.objects.GetCommit(from)
		if err != nil {
			return nil, fmt.Errorf("loading commit %s: %w", from, err)
		}
		history = append(history, CommitInfo{ID: from, Commit: commit})

		if len(commit.Parents) == 0 {
			break
		}
		from = commit.Parents[0]
	}

	return history, nil
}
