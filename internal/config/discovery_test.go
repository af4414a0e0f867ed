package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolve(t *testing.T) {
	dir := "/project"

	tests := []struct {
		name      string
		content   *string
		wantNil   bool
		wantTools []string
		wantTitle string
		wantWarns int
	}{
		{
			name:    "absent file",
			wantNil: true,
		},
		{
			name:      "custom patterns",
			content:   ptr("title: Ops\ntools:\n  - ops/*.tool.yaml\n  - shared/**/*.tool.json\n"),
			wantTools: []string{"ops/*.tool.yaml", "shared/**/*.tool.json"},
			wantTitle: "Ops",
		},
		{
			name:      "unparsable",
			content:   ptr("tools: [unclosed\n"),
			wantNil:   true,
			wantWarns: 1,
		},
		{
			name:      "tools is not a sequence",
			content:   ptr("tools: everything\n"),
			wantWarns: 1,
		},
		{
			name:      "tools contains non-string",
			content:   ptr("tools:\n  - a.tool.yaml\n  - {nested: true}\n"),
			wantWarns: 1,
		},
		{
			name:      "tools missing",
			content:   ptr("title: Only a title\n"),
			wantTitle: "Only a title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, fsys.MkdirAll(dir, 0o755))
			if tt.content != nil {
				require.NoError(t, afero.WriteFile(fsys, filepath.Join(dir, FileName), []byte(*tt.content), 0o644))
			}

			core, logs := observer.New(zapcore.WarnLevel)
			c := Resolve(fsys, dir, zap.New(core))

			assert.Equal(t, tt.wantWarns, logs.Len())
			if tt.wantNil {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, tt.wantTitle, c.Title)
			assert.Equal(t, tt.wantTools, nilIfEmpty(c.Tools))
		})
	}
}

func TestPatterns(t *testing.T) {
	assert.Equal(t, DefaultPatterns, Patterns(nil))
	assert.Equal(t, DefaultPatterns, Patterns(&DiscoveryConfig{Title: "x"}))
	assert.Equal(t, []string{"a/*.tool.yaml"}, Patterns(&DiscoveryConfig{Tools: []string{"a/*.tool.yaml"}}))

	// callers must not be able to mutate the defaults
	p := Patterns(nil)
	p[0] = "changed"
	assert.NotEqual(t, "changed", DefaultPatterns[0])
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("TOOLPANE_PORT", "9000")
	t.Setenv("TOOLPANE_LOG_LEVEL", "debug")
	t.Setenv("TOOLPANE_OTEL_ENABLED", "true")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "9000", s.Port)
	assert.True(t, s.OtelEnabled)
	assert.Equal(t, zapcore.DebugLevel, s.ZapLevel())
	assert.Equal(t, "toolpane", s.OtelServiceName)

	s.LogLevel = "loud"
	assert.Equal(t, zapcore.InfoLevel, s.ZapLevel())
}

func ptr(s string) *string { return &s }

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
