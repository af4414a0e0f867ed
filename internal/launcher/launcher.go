// Package launcher starts what the router decided to run: an app served over HTTP,
// or an opaque entry point run as a child process.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/toolpane/toolpane/internal/api"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/service/mcp"
	"github.com/toolpane/toolpane/internal/telemetry"
	"github.com/toolpane/toolpane/pkg/version"
	"go.uber.org/zap"
)

// ErrNotRunnable is returned for an entry point that toolpane does not know how to run.
var ErrNotRunnable = errors.New("entry point is not runnable")

// Options are passed to the launched app or entry point.
type Options struct {
	Port  string
	Title string
	Mode  app.Mode
}

// Config holds the dependencies of a Launcher.
type Config struct {
	// AccessToken, when set, protects the api and mcp endpoints of served apps.
	AccessToken     string
	ShutdownTimeout time.Duration
	OtelProviders   *telemetry.Providers
	Logger          *zap.Logger
}

// Launcher serves apps and runs entry points until their context is done.
type Launcher struct {
	accessToken     string
	shutdownTimeout time.Duration
	otelProviders   *telemetry.Providers
	logger          *zap.Logger
}

func New(c *Config) *Launcher {
	l := &Launcher{
		accessToken:     c.AccessToken,
		shutdownTimeout: c.ShutdownTimeout,
		otelProviders:   c.OtelProviders,
		logger:          c.Logger,
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// LaunchApp serves a over HTTP on opts.Port and blocks until ctx is done.
func (l *Launcher) LaunchApp(ctx context.Context, a *app.App, opts Options) error {
	mcpServer := mcp.NewMCPServer("toolpane", version.GetVersion())
	mcpService, err := mcp.NewMCPService(&mcp.ServiceConfig{
		App:       a,
		McpServer: mcpServer,
		Logger:    l.logger.Named("mcp"),
	})
	if err != nil {
		return fmt.Errorf("failed to create mcp service: %w", err)
	}

	s, err := api.NewServer(&api.ServerOptions{
		Port:            opts.Port,
		App:             a,
		MCPServer:       mcpServer,
		MCPService:      mcpService,
		AccessToken:     l.accessToken,
		ShutdownTimeout: l.shutdownTimeout,
		OtelProviders:   l.otelProviders,
		Logger:          l.logger.Named("api"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return s.Start(ctx)
}

// LaunchEntryPoint runs the file at path unmodified and blocks until it exits.
// The child is told the port, title and mode through PORT, TOOLPANE_TITLE and TOOLPANE_MODE.
func (l *Launcher) LaunchEntryPoint(ctx context.Context, path string, opts Options) error {
	env := append(os.Environ(),
		"PORT="+opts.Port,
		"TOOLPANE_TITLE="+opts.Title,
		"TOOLPANE_MODE="+string(opts.Mode),
	)
	l.logger.Info("running entry point", zap.String("path", path))
	return runEntryPoint(ctx, path, env)
}
