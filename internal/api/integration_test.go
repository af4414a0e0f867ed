package api_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolpane/toolpane/client"
	"github.com/toolpane/toolpane/internal/api"
	"github.com/toolpane/toolpane/internal/router"
	"github.com/toolpane/toolpane/pkg/types"
)

const (
	echoTool = `id: echo
title: Echo
inputs:
  msg: {type: string, required: true}
content: {type: action, handler: run, label: Echo}
functions:
  run:
    script: echo "$TOOLPANE_PARAMS"
`
	usersTool = `id: users
title: Users
content:
  type: table
  loader: list
  columns:
    - {key: name, label: Name}
functions:
  list:
    script: |
      echo '{"items": [{"name": "ada"}], "totalItems": 1}'
`
	accessToken = "integration-token"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"tools/echo.tool.yaml":   echoTool,
		"tools/users.tool.yaml":  usersTool,
		"tools/broken.tool.yaml": "id: [",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// TestDashboardEndToEnd discovers a project on disk, serves it and calls its tools
// through both the JSON api and the MCP endpoint.
func TestDashboardEndToEnd(t *testing.T) {
	dir := writeProject(t)

	r := router.New(&router.Config{Fs: afero.NewOsFs()})
	a, res, err := r.BuildDashboard(context.Background(), dir, "Integration")
	require.NoError(t, err)
	assert.Len(t, res.Diagnostics, 1)

	s, err := api.NewServer(&api.ServerOptions{App: a, AccessToken: accessToken})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	t.Run("json api", func(t *testing.T) {
		c := client.NewClient(ts.URL, accessToken, nil)

		info, err := c.GetApp()
		require.NoError(t, err)
		assert.Equal(t, "Integration", info.Title)
		require.Len(t, info.Tools, 2)
		assert.Equal(t, "echo", info.Tools[0].ID)
		assert.Equal(t, "users", info.Tools[1].ID)

		resp, err := c.Invoke("echo", "run", map[string]any{"msg": "hi"})
		require.NoError(t, err)
		require.True(t, resp.Fulfilled(), "%+v", resp)
		assert.Equal(t, map[string]any{"msg": "hi"}, resp.Value)

		resp, err = c.InvokeOperation("users", types.OperationLoad, map[string]any{"page": 1, "pageSize": 10})
		require.NoError(t, err)
		require.True(t, resp.Fulfilled(), "%+v", resp)
		assert.Equal(t, float64(1), resp.Value.(map[string]any)["totalItems"])

		resp, err = c.Invoke("echo", "missing", nil)
		require.NoError(t, err)
		assert.False(t, resp.Fulfilled())
		assert.Equal(t, "function 'missing' is not provided", resp.Error.Message)

		_, err = client.NewClient(ts.URL, "", nil).ListTools()
		assert.ErrorContains(t, err, "401")
	})

	t.Run("mcp", func(t *testing.T) {
		ctx := context.Background()
		session, err := mcpclient.NewStreamableHttpClient(
			ts.URL+"/mcp",
			transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + accessToken}),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })

		initRequest := mcp.InitializeRequest{}
		initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initRequest.Params.ClientInfo = mcp.Implementation{Name: "integration-test", Version: "0.1"}
		_, err = session.Initialize(ctx, initRequest)
		require.NoError(t, err)

		tools, err := session.ListTools(ctx, mcp.ListToolsRequest{})
		require.NoError(t, err)
		var names []string
		for _, tool := range tools.Tools {
			names = append(names, tool.Name)
		}
		assert.ElementsMatch(t, []string{"echo__run", "users__list"}, names)

		callRequest := mcp.CallToolRequest{}
		callRequest.Params.Name = "echo__run"
		callRequest.Params.Arguments = map[string]any{"msg": "from mcp"}
		result, err := session.CallTool(ctx, callRequest)
		require.NoError(t, err)
		require.False(t, result.IsError)
		require.NotEmpty(t, result.Content)

		text, ok := result.Content[0].(mcp.TextContent)
		require.True(t, ok)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
		assert.Equal(t, map[string]any{"msg": "from mcp"}, got)
	})
}
