// Package api provides the HTTP API and MCP endpoint of a toolpane server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/service/mcp"
	"github.com/toolpane/toolpane/internal/telemetry"
	"github.com/toolpane/toolpane/pkg/types"
	"github.com/toolpane/toolpane/pkg/version"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	V0PathPrefix    = "/v0"
	V0ApiPathPrefix = "/api" + V0PathPrefix
)

type ServerOptions struct {
	// Port is the HTTP port to bind the server to
	Port string

	// App is the aggregator being served
	App *app.App

	// MCPServer is the MCP server instance the app's functions are exposed on.
	MCPServer  *server.MCPServer
	MCPService *mcp.MCPService

	// AccessToken, when set, must be sent as a bearer token to the api and mcp endpoints.
	AccessToken string

	// ShutdownTimeout bounds the graceful shutdown once the serving context is done.
	ShutdownTimeout time.Duration

	OtelProviders *telemetry.Providers
	Logger        *zap.Logger
}

// Server serves an app over HTTP: a JSON API for UIs and scripts and an MCP endpoint for agents.
type Server struct {
	port   string
	router *gin.Engine

	app        *app.App
	mcpServer  *server.MCPServer
	mcpService *mcp.MCPService

	accessToken     string
	shutdownTimeout time.Duration

	otelProviders *telemetry.Providers
	logger        *zap.Logger
}

// NewServer initializes a new Gin server for the app
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.App == nil {
		return nil, fmt.Errorf("app must not be nil")
	}
	if opts.AccessToken != "" {
		if err := ValidateAccessToken(opts.AccessToken); err != nil {
			return nil, err
		}
	}
	s := &Server{
		port:            opts.Port,
		app:             opts.App,
		mcpServer:       opts.MCPServer,
		mcpService:      opts.MCPService,
		accessToken:     opts.AccessToken,
		shutdownTimeout: opts.ShutdownTimeout,
		otelProviders:   opts.OtelProviders,
		logger:          opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	if s.mcpServer == nil {
		s.mcpServer = mcp.NewMCPServer("toolpane", version.GetVersion())
	}
	if s.mcpService == nil {
		svc, err := mcp.NewMCPService(&mcp.ServiceConfig{
			App:       s.app,
			McpServer: s.mcpServer,
			Logger:    s.logger.Named("mcp"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mcp service: %w", err)
		}
		s.mcpService = svc
	}

	// Set up the router after the server is fully initialized
	r, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = r

	return s, nil
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is done, then shuts it down gracefully (blocking call).
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving app", zap.String("title", s.app.Title()), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run the server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// setupRouter sets up the Gin router with the MCP server and API endpoints.
func (s *Server) setupRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	// if otel is enabled, setup prometheus metrics endpoint
	if s.otelProviders != nil && s.otelProviders.IsEnabled() {
		// instrument gin
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))

		// expose prometheus metrics endpoint
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET(
		"/health",
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	)

	r.GET(
		"/metadata",
		func(c *gin.Context) {
			m := &types.ServerMetadata{
				Version: version.GetVersion(),
			}
			c.JSON(http.StatusOK, m)
		},
	)

	// everything below requires the access token when one is configured
	protected := r.Group("")
	if s.accessToken != "" {
		protected.Use(requireAccessToken(s.accessToken))
	}

	// Set up the MCP server on /mcp
	streamableHTTPServer := server.NewStreamableHTTPServer(s.mcpServer)
	protected.Any("/mcp", gin.WrapH(streamableHTTPServer))

	apiV0 := protected.Group(V0ApiPathPrefix)
	{
		apiV0.GET("/app", s.getAppHandler())
		apiV0.GET("/tools", s.listToolsHandler())
		apiV0.GET("/tools/:id", s.getToolHandler())
		apiV0.POST("/tools/:id/invoke", s.invokeToolHandler())
		apiV0.POST("/tools/:id/ops/:operation", s.invokeOperationHandler())
	}

	return r, nil
}

// requestLogger logs every request through zap at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug(
			"request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		)
	}
}
