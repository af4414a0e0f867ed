package discovery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScannerScan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"a.tool.yaml":                    "",
		"tools/x/b.tool.yaml":            "",
		"tools/vendor/c.tool.yaml":       "",
		"tools/build/nested/d.tool.yaml": "",
		"tools/coverage.tool.yaml":       "",
	})
	// a directory matching the pattern is never a candidate
	require.NoError(t, fsys.MkdirAll(filepath.Join(root, "tools/dir.tool.yaml"), 0o755))

	s := NewScanner(fsys, zap.NewNop())

	tests := []struct {
		name     string
		patterns []string
		want     []string
		diags    int
	}{
		{
			name:     "recursive pattern with exclusions",
			patterns: []string{"tools/**/*.tool.yaml"},
			want:     []string{"tools/coverage.tool.yaml", "tools/x/b.tool.yaml"},
		},
		{
			name:     "missing base directory",
			patterns: []string{"missing/**/*.tool.yaml"},
		},
		{
			name:     "bad pattern is skipped",
			patterns: []string{"tools/[*.tool.yaml", "*.tool.yaml"},
			want:     []string{"a.tool.yaml"},
			diags:    1,
		},
		{
			name:     "absolute pattern",
			patterns: []string{filepath.Join(root, "*.tool.yaml")},
			want:     []string{"a.tool.yaml"},
		},
		{
			name:     "duplicates across patterns",
			patterns: []string{"*.tool.yaml", "a.tool.yaml", "**/b.tool.yaml"},
			want:     []string{"a.tool.yaml", "tools/x/b.tool.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, diags := s.Scan(context.Background(), root, tt.patterns)
			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.Join(root, w))
			}
			assert.Equal(t, want, paths)
			assert.Len(t, diags, tt.diags)
		})
	}
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, isExcluded("node_modules/a.tool.yaml"))
	assert.True(t, isExcluded("x/.git/a.tool.yaml"))
	assert.False(t, isExcluded("build.tool.yaml"))
	assert.False(t, isExcluded("x/builds/a.tool.yaml"))
}
