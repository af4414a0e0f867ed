package entrypoint

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/handler"
	"github.com/toolpane/toolpane/internal/module"
	"github.com/toolpane/toolpane/internal/telemetry"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoaderConfig holds the dependencies of a Loader.
type LoaderConfig struct {
	Fs      afero.Fs
	Binder  *handler.Binder
	Metrics telemetry.CustomMetrics
	Logger  *zap.Logger
}

// Loader turns aggregator documents into apps.
// Imported tool files are re-loaded and their specs re-derived, so a manifest that drifted
// from the files on disk degrades to fewer tools instead of failing.
type Loader struct {
	modules *module.Loader
	binder  *handler.Binder
	metrics telemetry.CustomMetrics
	logger  *zap.Logger
}

func NewLoader(c *LoaderConfig) *Loader {
	l := &Loader{
		modules: module.NewLoader(c.Fs),
		binder:  c.Binder,
		metrics: c.Metrics,
		logger:  c.Logger,
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.binder == nil {
		l.binder = handler.NewBinder(&handler.Config{Logger: l.logger})
	}
	return l
}

// Load reads the aggregator document at path and builds an app from it.
// The document's own title and mode are used.
func (l *Loader) Load(path string) (*app.App, error) {
	m, err := l.modules.Load(path)
	if err != nil {
		return nil, err
	}
	e, ok := module.FindAggregator(m)
	if !ok {
		return nil, fmt.Errorf("%s does not export an aggregator", path)
	}
	return l.Build(e.Node, filepath.Dir(path), "")
}

// Build creates an app from an aggregator node. Imports resolve relative to baseDir.
// mode overrides the document's mode when set.
func (l *Loader) Build(node *yaml.Node, baseDir string, mode app.Mode) (*app.App, error) {
	var doc struct {
		Title string      `yaml:"title"`
		Mode  string      `yaml:"mode"`
		Tools []yaml.Node `yaml:"tools"`
	}
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode aggregator: %w", err)
	}

	if mode == "" {
		m, err := app.ParseMode(doc.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	tools := l.Tools(doc.Tools, baseDir)
	return app.New(&app.Config{
		Title:   doc.Title,
		Mode:    mode,
		Tools:   tools,
		Metrics: l.metrics,
		Logger:  l.logger.Named("app"),
	})
}

// Tools resolves aggregator elements into bound tools, in order.
// Elements that fail to resolve, and later duplicates of an id, are logged and skipped.
func (l *Loader) Tools(elements []yaml.Node, baseDir string) []*app.Tool {
	var tools []*app.Tool
	seen := make(map[string]struct{})
	for i := range elements {
		t, err := l.resolve(&elements[i], baseDir)
		if err != nil {
			l.logger.Warn("skipping aggregator entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, ok := seen[t.Spec.ID]; ok {
			l.logger.Warn("skipping aggregator entry with duplicate tool id", zap.Int("index", i), zap.String("id", t.Spec.ID))
			continue
		}
		seen[t.Spec.ID] = struct{}{}
		tools = append(tools, t)
	}
	return tools
}

// BindSpecs binds already validated specs loaded from filePath.
func (l *Loader) BindSpecs(specs []*types.ToolSpec, filePath string) ([]*app.Tool, error) {
	tools := make([]*app.Tool, 0, len(specs))
	for _, spec := range specs {
		t, err := l.bind(spec, filePath, filepath.Dir(filePath))
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

func (l *Loader) resolve(n *yaml.Node, baseDir string) (*app.Tool, error) {
	if imp := module.Lookup(n, "import"); imp != nil {
		var e Entry
		if err := n.Decode(&e); err != nil {
			return nil, fmt.Errorf("invalid import: %w", err)
		}
		return l.resolveImport(e, baseDir)
	}

	spec, err := module.DecodeSpec(n)
	if err != nil {
		return nil, fmt.Errorf("invalid inline tool spec: %w", err)
	}
	// inline specs run relative to the aggregator document
	return l.bind(spec, "", baseDir)
}

func (l *Loader) resolveImport(e Entry, baseDir string) (*app.Tool, error) {
	path := filepath.FromSlash(e.Import)
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	m, err := l.modules.Load(path)
	if err != nil {
		return nil, err
	}

	if e.Export != "" {
		for _, exp := range m.Exports() {
			if exp.Name != e.Export {
				continue
			}
			spec, err := module.DecodeSpec(exp.Node)
			if err == nil {
				return l.bind(spec, path, filepath.Dir(path))
			}
			l.logger.Debug("named export is no longer a valid spec, re-deriving",
				zap.String("path", path), zap.String("export", e.Export), zap.Error(err))
			break
		}
	}

	spec, _, err := module.ExtractSpec(m)
	if err != nil {
		return nil, err
	}
	return l.bind(spec, path, filepath.Dir(path))
}

func (l *Loader) bind(spec *types.ToolSpec, filePath, dir string) (*app.Tool, error) {
	fns, err := l.binder.Bind(spec, dir)
	if err != nil {
		return nil, err
	}
	return &app.Tool{Spec: spec, FilePath: filePath, Functions: fns}, nil
}
