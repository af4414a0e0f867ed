// Package router decides what to run for a working directory (dashboard path)
// or for a single file (focus path), and hands it to a launcher.
package router

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/config"
	"github.com/toolpane/toolpane/internal/discovery"
	"github.com/toolpane/toolpane/internal/entrypoint"
	"github.com/toolpane/toolpane/internal/launcher"
	"github.com/toolpane/toolpane/internal/module"
	"github.com/toolpane/toolpane/internal/reload"
	"go.uber.org/zap"
)

// DefaultTitle is the dashboard title when neither a flag nor the config file sets one.
const DefaultTitle = "toolpane"

var (
	ErrNoToolsFound      = errors.New("no tools found")
	ErrFocusFileNotFound = errors.New("file not found")
)

// Launcher runs what the router resolved.
type Launcher interface {
	LaunchApp(ctx context.Context, a *app.App, opts launcher.Options) error
	LaunchEntryPoint(ctx context.Context, path string, opts launcher.Options) error
}

// Config holds the dependencies of a Router.
type Config struct {
	Fs         afero.Fs
	Discoverer *discovery.Discoverer
	Loader     *entrypoint.Loader
	Launcher   Launcher

	// WatchDebounce is the quiet period before a rebuild in watch mode.
	WatchDebounce time.Duration

	Logger *zap.Logger
}

// Router implements the dashboard and focus execution paths.
type Router struct {
	fs            afero.Fs
	discoverer    *discovery.Discoverer
	synthesizer   *entrypoint.Synthesizer
	modules       *module.Loader
	loader        *entrypoint.Loader
	launcher      Launcher
	watchDebounce time.Duration
	logger        *zap.Logger
}

func New(c *Config) *Router {
	r := &Router{
		fs:            c.Fs,
		discoverer:    c.Discoverer,
		synthesizer:   entrypoint.NewSynthesizer(c.Fs),
		modules:       module.NewLoader(c.Fs),
		loader:        c.Loader,
		launcher:      c.Launcher,
		watchDebounce: c.WatchDebounce,
		logger:        c.Logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.discoverer == nil {
		r.discoverer = discovery.NewDiscoverer(c.Fs, r.logger.Named("discovery"), nil)
	}
	if r.loader == nil {
		r.loader = entrypoint.NewLoader(&entrypoint.LoaderConfig{Fs: c.Fs, Logger: r.logger.Named("entrypoint")})
	}
	return r
}

// DashboardOptions configure the dashboard path.
type DashboardOptions struct {
	Dir   string
	Title string
	Port  string

	// Watch rebuilds the tool set when tool files change.
	Watch bool
}

// RunDashboard discovers every tool under opts.Dir and serves them as one dashboard.
// It blocks until ctx is done or the launcher returns.
func (r *Router) RunDashboard(ctx context.Context, opts DashboardOptions) error {
	a, res, err := r.BuildDashboard(ctx, opts.Dir, opts.Title)
	if err != nil {
		return err
	}
	r.logger.Info("discovered tools", zap.Int("tools", len(res.Tools)), zap.Int("diagnostics", len(res.Diagnostics)))

	if opts.Watch {
		patterns := append([]string{config.FileName}, res.Patterns...)
		w, err := reload.New(reload.Config{
			Dir:      opts.Dir,
			Patterns: patterns,
			Debounce: r.watchDebounce,
			OnChange: func(ctx context.Context, changed []string) {
				r.logger.Info("tool files changed, rebuilding", zap.Int("files", len(changed)))
				if err := r.Rebuild(ctx, a, opts); err != nil {
					r.logger.Warn("rebuild failed, keeping previous tools", zap.Error(err))
				}
			},
			Logger: r.logger.Named("reload"),
		})
		if err != nil {
			return fmt.Errorf("failed to start watching %s: %w", opts.Dir, err)
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				r.logger.Error("watcher stopped", zap.Error(err))
			}
		}()
	}

	return r.launcher.LaunchApp(ctx, a, launcher.Options{Port: opts.Port, Title: a.Title(), Mode: a.Mode()})
}

// BuildDashboard runs one discovery pass over dir, synthesizes its entry point and loads it.
// Zero discovered tools, or zero tools left after binding, is ErrNoToolsFound.
func (r *Router) BuildDashboard(ctx context.Context, dir, title string) (*app.App, *discovery.Result, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve working directory %s: %w", dir, err)
	}

	res, err := r.discoverer.Discover(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	if len(res.Tools) == 0 {
		return nil, res, fmt.Errorf("%w in %s (patterns: %v)", ErrNoToolsFound, root, res.Patterns)
	}

	desc, err := r.synthesizer.Synthesize(root, res.Tools, dashboardTitle(title, res.Config))
	if err != nil {
		return nil, res, err
	}
	a, err := r.loader.Load(desc.Path)
	if err != nil {
		return nil, res, fmt.Errorf("failed to load entry point %s: %w", desc.Path, err)
	}
	if len(a.Tools()) == 0 {
		return nil, res, fmt.Errorf("%w in %s: none of the %d discovered tools could be bound", ErrNoToolsFound, root, len(res.Tools))
	}
	return a, res, nil
}

// Rebuild runs a full discovery pass and swaps the tools of a in place.
// On failure a keeps its current tools.
func (r *Router) Rebuild(ctx context.Context, a *app.App, opts DashboardOptions) error {
	next, _, err := r.BuildDashboard(ctx, opts.Dir, opts.Title)
	if err != nil {
		return err
	}
	return a.Replace(next.Tools())
}

// dashboardTitle applies flag > config > default precedence.
func dashboardTitle(flag string, cfg *config.DiscoveryConfig) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.Title != "" {
		return cfg.Title
	}
	return DefaultTitle
}
