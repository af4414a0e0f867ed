// Package discovery finds tool definition files in a working directory and extracts their specs.
// Every pass is a full rescan; nothing is cached between passes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/toolpane/toolpane/internal/config"
	"github.com/toolpane/toolpane/internal/module"
	"github.com/toolpane/toolpane/internal/telemetry"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DiscoveredTool is a validated spec and the file it was loaded from.
type DiscoveredTool struct {
	Spec *types.ToolSpec
	// FilePath is the absolute path of the tool file.
	FilePath string
	// Export is the name of the export the spec was extracted from.
	Export string
}

// Result is the outcome of one discovery pass.
type Result struct {
	Tools       []DiscoveredTool
	Diagnostics []Diagnostic

	// Config is the discovery configuration that was in effect, nil when none was found.
	Config   *config.DiscoveryConfig
	Patterns []string
}

// Discoverer runs discovery passes.
type Discoverer struct {
	fs      afero.Fs
	scanner *Scanner
	loader  *module.Loader
	logger  *zap.Logger
	metrics telemetry.CustomMetrics
}

func NewDiscoverer(fsys afero.Fs, logger *zap.Logger, metrics telemetry.CustomMetrics) *Discoverer {
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	return &Discoverer{
		fs:      fsys,
		scanner: NewScanner(fsys, logger.Named("scanner")),
		loader:  module.NewLoader(fsys),
		logger:  logger,
		metrics: metrics,
	}
}

type loadOutcome struct {
	tool *DiscoveredTool
	diag *Diagnostic
}

// Discover runs a full pass over dir.
// Per-file and per-pattern failures are logged and returned as diagnostics, never as errors.
// An empty result is not an error either; deciding what zero tools means is left to the caller.
func (d *Discoverer) Discover(ctx context.Context, dir string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", dir, err)
	}

	cfg := config.Resolve(d.fs, root, d.logger)
	patterns := config.Patterns(cfg)

	paths, diagnostics := d.scanner.Scan(ctx, root, patterns)
	d.logger.Debug("scanned for tool files", zap.Strings("patterns", patterns), zap.Int("candidates", len(paths)))

	// all candidates are loaded concurrently and the pass waits for every one to settle
	outcomes := make([]loadOutcome, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			outcomes[i] = d.load(path)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Config: cfg, Patterns: patterns, Diagnostics: diagnostics}
	seen := make(map[string]string)
	skipped := 0
	for _, o := range outcomes {
		if o.diag != nil {
			skipped++
			res.Diagnostics = append(res.Diagnostics, *o.diag)
			continue
		}
		id := o.tool.Spec.ID
		if first, ok := seen[id]; ok {
			skipped++
			d.logger.Warn(
				"skipping tool with duplicate id",
				zap.String("id", id), zap.String("path", o.tool.FilePath), zap.String("first", first),
			)
			res.Diagnostics = append(res.Diagnostics, warning(
				CodeDuplicateID, o.tool.FilePath, fmt.Sprintf("tool id '%s' is already defined in %s", id, first), nil,
			))
			continue
		}
		seen[id] = o.tool.FilePath
		res.Tools = append(res.Tools, *o.tool)
	}

	d.metrics.RecordDiscovery(ctx, len(res.Tools), skipped, time.Since(started))
	return res, nil
}

func (d *Discoverer) load(path string) loadOutcome {
	m, err := d.loader.Load(path)
	if err != nil {
		d.logger.Warn("skipping tool file that failed to load", zap.String("path", path), zap.Error(err))
		diag := warning(CodeFileLoadFailed, path, "failed to load tool file", err)
		return loadOutcome{diag: &diag}
	}

	spec, export, err := module.ExtractSpec(m)
	if err != nil {
		code := CodeSpecInvalid
		msg := "tool spec is invalid"
		if errors.Is(err, module.ErrNoSpecExport) {
			code = CodeNoSpecExport
			msg = "no export is shaped like a tool spec"
		}
		d.logger.Warn("skipping tool file", zap.String("path", path), zap.String("reason", msg), zap.Error(err))
		diag := warning(code, path, msg, err)
		return loadOutcome{diag: &diag}
	}

	return loadOutcome{tool: &DiscoveredTool{Spec: spec, FilePath: path, Export: export}}
}
