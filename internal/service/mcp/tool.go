package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// ListTools returns the registered MCP tools sorted by name.
func (s *MCPService) ListTools() []mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(s.toolInstances))
	for _, t := range s.toolInstances {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// GetToolInstance returns the registered mcp.Tool for the given canonical name.
func (s *MCPService) GetToolInstance(name string) (mcp.Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tool, exists := s.toolInstances[name]
	return tool, exists
}

// ToolCallHandler serves an MCP tool call by invoking the matching app function.
// Rejected invocations are reported as tool errors, not protocol errors.
func (s *MCPService) ToolCallHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.Params.Name
	toolID, function, ok := types.SplitCanonicalFunctionName(name)
	if !ok {
		return nil, fmt.Errorf("invalid input: tool name does not contain a %s separator", types.ToolIDSep)
	}

	res, err := s.app.Invoke(ctx, toolID, invoke.Request{Function: function, Params: request.GetArguments()}, nil)
	if err != nil {
		if errors.Is(err, app.ErrToolNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	if res.State == invoke.StateRejected {
		s.logger.Debug("mcp tool call rejected", zap.String("tool", name), zap.Error(res.Err))
		return mcp.NewToolResultError(res.Response().Error.Message), nil
	}
	return convertValueToToolResult(res.Value)
}

// convertValueToToolResult renders a fulfilled value as MCP content.
// Strings are sent as-is, everything else as JSON text plus structured content for objects.
func convertValueToToolResult(v any) (*mcp.CallToolResult, error) {
	if s, ok := v.(string); ok {
		return mcp.NewToolResultText(s), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	result := mcp.NewToolResultText(string(data))
	if _, isObject := v.(map[string]any); isObject {
		result.StructuredContent = v
	}
	return result, nil
}
