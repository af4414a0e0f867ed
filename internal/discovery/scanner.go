package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExcludedDirs are never descended into, wherever they appear below a pattern's base directory.
var ExcludedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"out":          {},
	"coverage":     {},
	"vendor":       {},
	".cache":       {},
	".toolpane":    {},
}

// Scanner expands glob patterns into candidate tool files.
type Scanner struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewScanner(fsys afero.Fs, logger *zap.Logger) *Scanner {
	return &Scanner{fs: fsys, logger: logger}
}

// Scan expands every pattern against root and returns the deduplicated absolute paths of matching files.
// Patterns are expanded concurrently but results keep pattern order, each pattern's matches sorted.
// A failing pattern is skipped and reported as a diagnostic.
func (s *Scanner) Scan(ctx context.Context, root string, patterns []string) ([]string, []Diagnostic) {
	matches := make([][]string, len(patterns))
	diags := make([]*Diagnostic, len(patterns))

	var g errgroup.Group
	for i, pattern := range patterns {
		g.Go(func() error {
			found, err := s.expand(root, pattern)
			if err != nil {
				s.logger.Warn("skipping pattern", zap.String("pattern", pattern), zap.Error(err))
				d := warning(CodePatternSkipped, pattern, "failed to expand pattern", err)
				diags[i] = &d
				return nil
			}
			matches[i] = found
			return nil
		})
	}
	// goroutines never return errors, soft failures are collected as diagnostics
	_ = g.Wait()

	seen := make(map[string]struct{})
	var paths []string
	var diagnostics []Diagnostic
	for i := range patterns {
		if diags[i] != nil {
			diagnostics = append(diagnostics, *diags[i])
		}
		for _, p := range matches[i] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	return paths, diagnostics
}

func (s *Scanner) expand(root, pattern string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, pattern)
	}

	base, rel := doublestar.SplitPattern(filepath.ToSlash(full))
	if !doublestar.ValidatePattern(rel) {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	base = filepath.FromSlash(base)

	exists, err := afero.DirExists(s.fs, base)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", base, err)
	}
	if !exists {
		// nothing to match, eg- a project without a tools directory
		return nil, nil
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(s.fs, base))
	found, err := doublestar.Glob(fsys, rel, doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("failed to expand %q: %w", pattern, err)
	}

	var paths []string
	for _, m := range found {
		if isExcluded(m) {
			continue
		}
		abs := filepath.Join(base, filepath.FromSlash(m))
		info, err := s.fs.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)
	return paths, nil
}

// isExcluded reports whether any directory segment of a slash-separated relative path is excluded.
func isExcluded(rel string) bool {
	segments := strings.Split(rel, "/")
	for _, seg := range segments[:len(segments)-1] {
		if _, ok := ExcludedDirs[seg]; ok {
			return true
		}
	}
	return false
}
