package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// mcpFunc calls a tool on an upstream MCP server.
// A new session is created for every call; stdio servers are spawned per call as well.
func (b *Binder) mcpFunc(c call, h *types.MCPHandler) invoke.Func {
	return func(ctx context.Context, params map[string]any) (any, error) {
		session, err := b.newMcpSession(ctx, c, h)
		if err != nil {
			return nil, err
		}
		defer session.Close()

		req := mcp.CallToolRequest{}
		req.Params.Name = h.Tool
		req.Params.Arguments = params

		resp, err := session.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to call tool %s on MCP server: %w", h.Tool, err)
		}
		return convertCallToolResult(resp)
	}
}

// convertCallToolResult turns an MCP tool result into a plain value.
// Structured content wins; otherwise text content is decoded like command output.
func convertCallToolResult(resp *mcp.CallToolResult) (any, error) {
	texts := textContents(resp.Content)
	if resp.IsError {
		msg := strings.Join(texts, "\n")
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, errors.New(msg)
	}
	if resp.StructuredContent != nil {
		return resp.StructuredContent, nil
	}

	switch len(texts) {
	case 0:
		if len(resp.Content) == 0 {
			return nil, nil
		}
		// non-text content (images, resources) is returned in its wire form
		var out []any
		data, err := json.Marshal(resp.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool content: %w", err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool content: %w", err)
		}
		return out, nil
	case 1:
		return decodeOutput([]byte(texts[0])), nil
	default:
		out := make([]any, len(texts))
		for i, t := range texts {
			out[i] = decodeOutput([]byte(t))
		}
		return out, nil
	}
}

func textContents(content []mcp.Content) []string {
	var texts []string
	for _, item := range content {
		switch v := item.(type) {
		case mcp.TextContent:
			texts = append(texts, v.Text)
		case *mcp.TextContent:
			texts = append(texts, v.Text)
		}
	}
	return texts
}

func (b *Binder) newMcpSession(ctx context.Context, c call, h *types.MCPHandler) (*client.Client, error) {
	if h.URL != "" {
		session, err := b.createHTTPMcpServerConn(ctx, c, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection to streamable http MCP server %s: %w", h.URL, err)
		}
		return session, nil
	}
	session, err := b.runStdioServer(ctx, c, h)
	if err != nil {
		return nil, fmt.Errorf("failed to run stdio MCP server %s: %w", h.Command, err)
	}
	return session, nil
}

func (b *Binder) initializeSession(ctx context.Context, session *client.Client, clientName string) error {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: "0.1",
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	initCtx, cancel := context.WithTimeout(ctx, b.mcpInitTimeout)
	defer cancel()

	if _, err := session.Initialize(initCtx, initRequest); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("initialization request to MCP server timed out after %s", b.mcpInitTimeout)
		}
		return fmt.Errorf("failed to initialize connection with MCP server: %w", err)
	}
	return nil
}

// createHTTPMcpServerConn creates a new connection with a streamable http MCP server.
func (b *Binder) createHTTPMcpServerConn(ctx context.Context, c call, h *types.MCPHandler) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if headers := prepareHTTPHeaders(b.logger, c, h.Headers, h.BearerToken); len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	session, err := client.NewStreamableHttpClient(h.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP client: %w", err)
	}

	if err := b.initializeSession(ctx, session, "toolpane mcp client for "+h.URL); err != nil {
		_ = session.Close()
		if errors.Is(err, syscall.ECONNREFUSED) && isLoopbackURL(h.URL) {
			return nil, fmt.Errorf(
				"connection to the MCP server %s was refused, check that it is running: %w", h.URL, err,
			)
		}
		return nil, err
	}
	return session, nil
}

// runStdioServer spawns a stdio MCP server and initializes a session with it.
func (b *Binder) runStdioServer(ctx context.Context, c call, h *types.MCPHandler) (*client.Client, error) {
	session, err := client.NewStdioMCPClient(h.Command, envSlice(h.Env), h.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio client: %w", err)
	}
	b.captureStdioServerStderr(c, session)

	if err := b.initializeSession(ctx, session, "toolpane mcp client for stdio"); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// captureStdioServerStderr forwards the stderr output of a stdio MCP server to the logs.
func (b *Binder) captureStdioServerStderr(c call, session *client.Client) {
	stdioTransport, ok := session.GetTransport().(*transport.Stdio)
	if !ok {
		return
	}
	logger := b.logger.With(zap.Stringer("function", c))

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdioTransport.Stderr().Read(buf)
			if n > 0 {
				logger.Debug("mcp server stderr", zap.String("output", string(buf[:n])))
			}
			if err != nil {
				if err != io.EOF && !errors.Is(err, os.ErrClosed) {
					logger.Debug("failed to read mcp server stderr", zap.Error(err))
				}
				return
			}
		}
	}()
}

// isLoopbackURL returns true if rawURL points at a loopback address.
func isLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
