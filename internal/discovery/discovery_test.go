package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const root = "/project"

func specYAML(id string) string {
	return fmt.Sprintf(`id: %s
title: %s tool
content:
  type: action
  handler: run
functions:
  run:
    script: echo done
`, id, id)
}

func writeFiles(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
}

func toolIDs(res *Result) []string {
	var ids []string
	for _, tool := range res.Tools {
		ids = append(ids, tool.Spec.ID)
	}
	return ids
}

func TestDiscoverDefaultPatterns(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"tools/users.tool.yaml":            specYAML("users"),
		"tools/admin/roles.tool.yml":       specYAML("roles"),
		"top.tool.json":                    `{"id": "top", "title": "Top", "content": {"type": "action", "handler": "run"}, "functions": {"run": {"script": "true"}}}`,
		"tools/node_modules/dep.tool.yaml": specYAML("dep"),
		"tools/dist/built.tool.yaml":       specYAML("built"),
		"tools/.toolpane/entry.tool.yaml":  specYAML("entry"),
		"tools/readme.md":                  "not a tool",
		"nested/ignored.tool.yaml":         specYAML("nested"),
	})

	d := NewDiscoverer(fsys, zap.NewNop(), nil)
	res, err := d.Discover(context.Background(), root)
	require.NoError(t, err)

	assert.Nil(t, res.Config)
	assert.ElementsMatch(t, []string{"users", "roles", "top"}, toolIDs(res))
	assert.Empty(t, res.Diagnostics)

	for _, tool := range res.Tools {
		assert.True(t, filepath.IsAbs(tool.FilePath))
	}
}

func TestDiscoverCustomPatternsKeepOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"toolpane.config.yaml":  "tools:\n  - second/*.tool.yaml\n  - first/*.tool.yaml\n  - '**/*.tool.yaml'\n",
		"first/a.tool.yaml":     specYAML("a"),
		"second/c.tool.yaml":    specYAML("c"),
		"second/b.tool.yaml":    specYAML("b"),
		"tools/ignored.tool.ts": "export default {}",
	})

	d := NewDiscoverer(fsys, zap.NewNop(), nil)
	res, err := d.Discover(context.Background(), root)
	require.NoError(t, err)

	require.NotNil(t, res.Config)
	// the overlapping third pattern must not produce duplicates
	assert.Equal(t, []string{"b", "c", "a"}, toolIDs(res))
}

func TestDiscoverSkipsBadFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"tools/good.tool.yaml":    specYAML("good"),
		"tools/broken.tool.yaml":  "id: [unterminated",
		"tools/helpers.tool.yaml": "formatDate: iso\n",
		"tools/invalid.tool.yaml": "id: invalid\ntitle: Invalid\n",
	})

	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDiscoverer(fsys, zap.New(core), nil)
	res, err := d.Discover(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, toolIDs(res))

	codes := map[string]string{}
	for _, diag := range res.Diagnostics {
		codes[filepath.Base(diag.Path)] = diag.Code
		assert.Equal(t, SeverityWarning, diag.Severity)
	}
	assert.Equal(t, map[string]string{
		"broken.tool.yaml":  CodeFileLoadFailed,
		"helpers.tool.yaml": CodeNoSpecExport,
		"invalid.tool.yaml": CodeSpecInvalid,
	}, codes)
	assert.Equal(t, 3, logs.FilterMessage("skipping tool file that failed to load").Len()+
		logs.FilterMessage("skipping tool file").Len())
}

func TestDiscoverDuplicateIDKeepsFirst(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"tools/a.tool.yaml": specYAML("same"),
		"tools/b.tool.yaml": specYAML("same"),
	})

	d := NewDiscoverer(fsys, zap.NewNop(), nil)
	res, err := d.Discover(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, res.Tools, 1)
	assert.Equal(t, filepath.Join(root, "tools/a.tool.yaml"), res.Tools[0].FilePath)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeDuplicateID, res.Diagnostics[0].Code)
}

func TestDiscoverEmptyIsNotAnError(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(root, 0o755))

	d := NewDiscoverer(fsys, zap.NewNop(), nil)
	res, err := d.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, res.Tools)
}

func TestDiscoverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDiscoverer(afero.NewMemMapFs(), zap.NewNop(), nil)
	_, err := d.Discover(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
