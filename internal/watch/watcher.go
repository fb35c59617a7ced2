// internal/watch/watcher.go
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"guardian/internal/ignore"
)

// Watcher tracks which paths changed since the last time it was drained,
// letting a scanner skip clean subtrees instead of rewalking everything.
type Watcher struct {
	root    string
	rules   *ignore.Rules
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu    sync.Mutex
	dirty map[string]bool
}

// New starts watching the working tree under root. Ignored directories are
// never registered with the OS watcher.
func New(root string, rules *ignore.Rules, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		root:    root,
		rules:   rules,
		watcher: fsw,
		logger:  logger,
		dirty:   make(map[string]bool),
	}

	go w.loop()

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("registering directories: %w", err)
	}

	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && w.rules.IsIgnored(relPath) {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if w.rules.IsIgnored(relPath) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error("watching new directory", zap.Error(err))
			}
		}
	}

	w.mu.Lock()
	w.dirty[relPath] = true
	w.mu.Unlock()
}

// Drain returns the dirty paths recorded so far and resets the set.
func (w *Watcher) Drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.dirty))
	for path := range w.dirty {
		paths = append(paths, path)
	}
	w.dirty = make(map[string]bool)
	return paths
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
