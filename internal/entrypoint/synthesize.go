// Package entrypoint writes the aggregator manifest for a discovery pass and loads aggregator
// documents back into a running app.
package entrypoint

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/discovery"
	"gopkg.in/yaml.v3"
)

const (
	// BuildDir is the ephemeral directory, relative to the working directory, holding generated files.
	BuildDir = ".toolpane"
	// FileName is the name of the synthesized manifest inside BuildDir.
	FileName = "entry.yaml"

	header = "# Code generated by toolpane. DO NOT EDIT.\n# Regenerated on every discovery pass.\n"
)

// Manifest is the document shape of an aggregator.
type Manifest struct {
	Title string  `yaml:"title,omitempty"`
	Mode  string  `yaml:"mode,omitempty"`
	Tools []Entry `yaml:"tools"`
}

// Entry references a tool file to import. Export optionally selects one of its exports.
type Entry struct {
	Import string `yaml:"import"`
	Export string `yaml:"export,omitempty"`
}

// Descriptor is the synthesized manifest and where it was written.
type Descriptor struct {
	Path   string
	Source []byte
}

// Synthesizer writes aggregator manifests.
type Synthesizer struct {
	fs afero.Fs
}

func NewSynthesizer(fsys afero.Fs) *Synthesizer {
	return &Synthesizer{fs: fsys}
}

// Path returns where the manifest of cwd is written.
func Path(cwd string) string {
	return filepath.Join(cwd, BuildDir, FileName)
}

// Synthesize writes the manifest for tools into cwd's build directory, replacing any previous one.
// Imports are relative to the build directory and keep the order of tools.
func (s *Synthesizer) Synthesize(cwd string, tools []discovery.DiscoveredTool, title string) (*Descriptor, error) {
	path := Path(cwd)
	dir := filepath.Dir(path)

	m := Manifest{
		Title: title,
		Mode:  string(app.ModeDashboard),
		Tools: make([]Entry, 0, len(tools)),
	}
	for _, t := range tools {
		rel, err := filepath.Rel(dir, t.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to compute import path for %s: %w", t.FilePath, err)
		}
		m.Tools = append(m.Tools, Entry{Import: filepath.ToSlash(rel), Export: t.Export})
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&m); err != nil {
		return nil, fmt.Errorf("failed to encode entry point manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode entry point manifest: %w", err)
	}

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build directory %s: %w", dir, err)
	}
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write entry point %s: %w", path, err)
	}

	return &Descriptor{Path: path, Source: buf.Bytes()}, nil
}
