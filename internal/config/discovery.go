// Package config resolves the optional discovery configuration of a project and the
// runtime settings of toolpane itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileName is the well-known discovery configuration file looked up in the working directory.
const FileName = "toolpane.config.yaml"

// DefaultPatterns are used when no configuration provides its own.
// The first matches nested tool files under a tools directory, the second first-level tool files.
var DefaultPatterns = []string{
	"tools/**/*.tool.{yaml,yml,json}",
	"*.tool.{yaml,yml,json}",
}

// DiscoveryConfig is the parsed discovery configuration.
type DiscoveryConfig struct {
	// Tools is the ordered list of glob patterns, relative to the working directory unless absolute.
	// It is empty when the file did not provide a usable sequence of strings.
	Tools []string

	// Title is the default dashboard title.
	Title string

	// Path is the absolute path of the file the configuration was read from.
	Path string
}

// fileConfig is the raw shape of the configuration file.
// tools is decoded loosely so malformed values can be reported instead of failing the whole file.
type fileConfig struct {
	Tools any    `yaml:"tools"`
	Title string `yaml:"title"`
}

// Resolve loads the discovery configuration from dir.
// It returns nil when the file is absent, unreadable or unparsable. It never fails.
func Resolve(fsys afero.Fs, dir string, logger *zap.Logger) *DiscoveryConfig {
	path := filepath.Join(dir, FileName)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to read discovery configuration, using defaults", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		logger.Warn("failed to parse discovery configuration, using defaults", zap.String("path", path), zap.Error(err))
		return nil
	}

	c := &DiscoveryConfig{Title: raw.Title, Path: path}

	patterns, err := parseToolPatterns(raw.Tools)
	if err != nil {
		logger.Warn("ignoring tools in discovery configuration", zap.String("path", path), zap.Error(err))
		return c
	}
	c.Tools = patterns
	return c
}

func parseToolPatterns(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("tools must be a sequence of strings, got %T", v)
	}
	patterns := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("tools[%d] must be a string, got %T", i, item)
		}
		patterns = append(patterns, s)
	}
	return patterns, nil
}

// Patterns returns the effective search patterns for a (possibly nil) configuration.
func Patterns(c *DiscoveryConfig) []string {
	if c != nil && len(c.Tools) > 0 {
		return c.Tools
	}
	out := make([]string, len(DefaultPatterns))
	copy(out, DefaultPatterns)
	return out
}
