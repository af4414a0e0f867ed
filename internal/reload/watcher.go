// Package reload watches a project directory and reports debounced changes to tool files.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/toolpane/toolpane/internal/discovery"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Config holds the parameters of a Watcher.
type Config struct {
	// Dir is the root directory to watch recursively.
	Dir string

	// Patterns select which files trigger a change.
	// Relative patterns are matched against paths relative to Dir, absolute ones against absolute paths.
	// An empty slice accepts every file outside the excluded directories.
	Patterns []string

	// Debounce is the quiet period after the last event before OnChange fires.
	Debounce time.Duration

	// OnChange receives the sorted, deduplicated absolute paths changed during the debounce window.
	OnChange func(ctx context.Context, changed []string)

	Logger *zap.Logger
}

// Watcher fires a debounced callback when files under a directory change.
type Watcher struct {
	cfg      Config
	dir      string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
}

// New creates a Watcher and registers every directory under c.Dir that discovery would descend into.
func New(c Config) (*Watcher, error) {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch directory: %w", err)
	}
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid watch pattern '%s': %w", p, doublestar.ErrBadPattern)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		cfg:      c,
		dir:      dir,
		debounce: c.Debounce,
		fsw:      fsw,
		logger:   c.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}

	if err := w.addTree(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes file events until ctx is done (blocking call).
// OnChange calls never overlap; events arriving during a call are delivered in the next one.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running sync.Mutex
	)

	fire := func() {
		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}

		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		clear(pending)
		mu.Unlock()

		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		sort.Strings(changed)
		w.logger.Debug("files changed", zap.Strings("paths", changed))
		w.cfg.OnChange(ctx, changed)
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher event channel closed")
			}
			if w.excluded(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matches(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher error channel closed")
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("not watching inaccessible path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && w.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory '%s': %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
	}
}

// excluded reports whether path lies inside a directory that discovery never descends into.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := discovery.ExcludedDirs[seg]; ok {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		rel = path
	}
	for _, p := range w.cfg.Patterns {
		target := rel
		if filepath.IsAbs(p) {
			target = path
		}
		if ok, _ := doublestar.Match(filepath.ToSlash(p), filepath.ToSlash(target)); ok {
			return true
		}
	}
	return false
}
