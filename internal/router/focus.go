package router

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/launcher"
	"github.com/toolpane/toolpane/internal/module"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// Outcome is what the focus path decided to run.
type Outcome int

const (
	// OutcomeFallback runs the file as an opaque entry point.
	OutcomeFallback Outcome = iota
	// OutcomeAggregator serves an aggregator exported by the file as-is.
	OutcomeAggregator
	// OutcomeSpecs serves the file's tool specs in focus mode.
	OutcomeSpecs
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAggregator:
		return "aggregator"
	case OutcomeSpecs:
		return "specs"
	default:
		return "fallback"
	}
}

// FocusOptions configure the focus path.
type FocusOptions struct {
	File  string
	Title string
	Port  string
}

// Decision is the result of classifying a focus file.
type Decision struct {
	Outcome Outcome
	// Path is the absolute path of the file.
	Path string
	// App is set for OutcomeAggregator and OutcomeSpecs.
	App *app.App
	// Reason explains a fallback caused by a load failure, nil otherwise.
	Reason error
}

// RunFocus serves the tools of a single file, or runs it as an entry point when it has none.
func (r *Router) RunFocus(ctx context.Context, opts FocusOptions) error {
	d, err := r.Classify(opts.File, opts.Title)
	if err != nil {
		return err
	}
	r.logger.Info("resolved focus file", zap.String("path", d.Path), zap.Stringer("outcome", d.Outcome))

	if d.App != nil {
		return r.launcher.LaunchApp(ctx, d.App, launcher.Options{Port: opts.Port, Title: d.App.Title(), Mode: d.App.Mode()})
	}
	return r.launcher.LaunchEntryPoint(ctx, d.Path, launcher.Options{Port: opts.Port, Title: opts.Title, Mode: app.ModeFocus})
}

// Classify decides how a focus file is run without running it.
// Only a missing file is an error; a file that fails to load falls back to an entry point.
func (r *Router) Classify(file, title string) (*Decision, error) {
	path, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
	}
	if _, err := r.fs.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFocusFileNotFound, path)
	}

	m, err := r.modules.Load(path)
	if err != nil {
		r.logger.Debug("focus file did not load, running it as an entry point", zap.String("path", path), zap.Error(err))
		return &Decision{Outcome: OutcomeFallback, Path: path, Reason: err}, nil
	}

	if e, ok := module.FindAggregator(m); ok {
		a, err := r.loader.Build(e.Node, filepath.Dir(path), app.ModeLibrary)
		if err != nil {
			r.logger.Debug("aggregator did not build, running it as an entry point",
				zap.String("path", path), zap.String("export", e.Name), zap.Error(err))
			return &Decision{Outcome: OutcomeFallback, Path: path, Reason: err}, nil
		}
		return &Decision{Outcome: OutcomeAggregator, Path: path, App: a}, nil
	}

	extracted, problems := module.ExtractAll(m)
	for _, p := range problems {
		r.logger.Warn("skipping invalid export", zap.String("path", path), zap.Error(p))
	}

	var tools []*app.Tool
	seen := make(map[string]struct{})
	for _, x := range extracted {
		if _, ok := seen[x.Spec.ID]; ok {
			r.logger.Warn("skipping export with duplicate tool id", zap.String("path", path), zap.String("export", x.Export))
			continue
		}
		bound, err := r.loader.BindSpecs([]*types.ToolSpec{x.Spec}, path)
		if err != nil {
			r.logger.Warn("skipping tool", zap.String("path", path), zap.String("export", x.Export), zap.Error(err))
			continue
		}
		seen[x.Spec.ID] = struct{}{}
		tools = append(tools, bound...)
	}
	if len(tools) == 0 {
		return &Decision{Outcome: OutcomeFallback, Path: path}, nil
	}

	if title == "" {
		title = tools[0].Spec.Title
	}
	a, err := app.New(&app.Config{Title: title, Mode: app.ModeFocus, Tools: tools, Logger: r.logger.Named("app")})
	if err != nil {
		return nil, err
	}
	return &Decision{Outcome: OutcomeSpecs, Path: path, App: a}, nil
}
