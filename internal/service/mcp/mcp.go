// Package mcp exposes the functions of the served app as tools of an MCP server.
package mcp

import (
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toolpane/toolpane/internal/app"
	"go.uber.org/zap"
)

// ServiceConfig holds the configuration parameters for initializing the MCPService.
type ServiceConfig struct {
	App       *app.App
	McpServer *server.MCPServer
	Logger    *zap.Logger
}

// MCPService keeps an MCP server in sync with the tools of an app.
// Every function of every tool becomes one MCP tool named `<toolId>__<function>`.
type MCPService struct {
	app       *app.App
	mcpServer *server.MCPServer
	logger    *zap.Logger

	// toolInstances keeps track of all the registered mcp.Tool instances, keyed by their canonical names.
	toolInstances map[string]mcp.Tool
	mu            sync.RWMutex
}

// NewMCPService creates a new instance of MCPService.
// It registers the app's current tools and re-registers them whenever the app's tool set changes.
func NewMCPService(c *ServiceConfig) (*MCPService, error) {
	if c.App == nil {
		return nil, fmt.Errorf("app must not be nil")
	}
	if c.McpServer == nil {
		return nil, fmt.Errorf("mcp server must not be nil")
	}
	s := &MCPService{
		app:           c.App,
		mcpServer:     c.McpServer,
		logger:        c.Logger,
		toolInstances: make(map[string]mcp.Tool),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.syncTools()
	c.App.OnToolsChange(func(removed, current []string) {
		s.syncTools()
	})
	return s, nil
}

// NewMCPServer creates the MCP server the app's tools are registered on.
func NewMCPServer(name, version string) *server.MCPServer {
	return server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
}

// syncTools replaces every registered MCP tool with the current functions of the app.
func (s *MCPService) syncTools() {
	tools := s.buildTools()

	s.mu.Lock()
	defer s.mu.Unlock()

	stale := make([]string, 0, len(s.toolInstances))
	for name := range s.toolInstances {
		if _, ok := tools[name]; !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		s.mcpServer.DeleteTools(stale...)
	}

	for _, tool := range tools {
		s.mcpServer.AddTool(tool, s.ToolCallHandler)
	}
	s.toolInstances = tools

	s.logger.Debug("synced mcp tools", zap.Int("tools", len(tools)), zap.Int("removed", len(stale)))
}

func (s *MCPService) buildTools() map[string]mcp.Tool {
	tools := make(map[string]mcp.Tool)
	for _, t := range s.app.Tools() {
		for _, tool := range convertToolToMcpObjects(t.Spec) {
			tools[tool.Name] = tool
		}
	}
	return tools
}
