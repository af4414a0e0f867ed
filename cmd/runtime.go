package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/api"
	"github.com/toolpane/toolpane/internal/db"
	"github.com/toolpane/toolpane/internal/discovery"
	"github.com/toolpane/toolpane/internal/entrypoint"
	"github.com/toolpane/toolpane/internal/handler"
	"github.com/toolpane/toolpane/internal/launcher"
	"github.com/toolpane/toolpane/internal/router"
	"github.com/toolpane/toolpane/internal/telemetry"
	"go.uber.org/zap"
)

// runtime holds everything a serving command needs.
type runtime struct {
	router *router.Router
	close  func()
}

// newRuntime wires telemetry, databases, handlers and the router for a project rooted at dir.
func newRuntime(ctx context.Context, dir, accessToken string) (*runtime, error) {
	otelProviders, err := telemetry.Init(ctx, &telemetry.Config{
		ServiceName: settings.OtelServiceName,
		Enabled:     settings.OtelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Opentelemetry providers: %w", err)
	}

	// A no-op implementation is used when metrics are disabled, so the rest of the code
	// records metrics without checking whether they are enabled.
	metrics := telemetry.NewNoopCustomMetrics()
	if otelProviders.IsEnabled() {
		metrics, err = telemetry.NewCustomMetrics(otelProviders)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	dbs := db.NewRegistry(databaseDSN(dir), logger.Named("db"))
	binder := handler.NewBinder(&handler.Config{
		Logger:         logger.Named("handler"),
		DB:             dbs,
		Timeout:        settings.HandlerTimeout,
		MCPInitTimeout: settings.MCPInitTimeout,
	})

	fsys := afero.NewOsFs()
	r := router.New(&router.Config{
		Fs:         fsys,
		Discoverer: discovery.NewDiscoverer(fsys, logger.Named("discovery"), metrics),
		Loader: entrypoint.NewLoader(&entrypoint.LoaderConfig{
			Fs:      fsys,
			Binder:  binder,
			Metrics: metrics,
			Logger:  logger.Named("entrypoint"),
		}),
		Launcher: launcher.New(&launcher.Config{
			AccessToken:     accessToken,
			ShutdownTimeout: settings.ShutdownTimeout,
			OtelProviders:   otelProviders,
			Logger:          logger.Named("launcher"),
		}),
		WatchDebounce: settings.WatchDebounce,
		Logger:        logger.Named("router"),
	})

	return &runtime{
		router: r,
		close: func() {
			if err := dbs.Close(); err != nil {
				logger.Warn("failed to close databases", zap.Error(err))
			}
			if err := otelProviders.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to shutdown opentelemetry providers", zap.Error(err))
			}
		},
	}, nil
}

// databaseDSN resolves a relative sqlite path in the settings against the project directory.
func databaseDSN(dir string) string {
	dsn := settings.Database
	if db.IsFilePath(dsn) && !filepath.IsAbs(dsn) {
		return filepath.Join(dir, dsn)
	}
	return dsn
}

// getAccessToken returns the token protecting the server: a freshly generated one when
// generate is set, TOOLPANE_ACCESS_TOKEN otherwise. Empty means the server is open.
func getAccessToken(cmd *cobra.Command, generate bool) (string, error) {
	if !generate {
		return settings.AccessToken, nil
	}
	token, err := api.GenerateAccessToken()
	if err != nil {
		return "", err
	}
	cmd.Printf("Access token for this server: %s\n", token)
	cmd.Println("Send it as 'Authorization: Bearer <token>' or pass it to `toolpane call --access-token`.")
	return token, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
