package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolpane/toolpane/internal/db"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

func newTestBinder(t *testing.T) *Binder {
	t.Helper()
	registry := db.NewRegistry(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	t.Cleanup(func() { _ = registry.Close() })
	return NewBinder(&Config{Logger: zap.NewNop(), DB: registry, Timeout: 10 * time.Second})
}

func actionSpec(id string, fn types.FunctionDef) *types.ToolSpec {
	return &types.ToolSpec{
		ID:        id,
		Title:     id,
		Content:   types.Content{Type: types.ContentAction, Action: &types.ActionContent{Handler: "run"}},
		Functions: map[string]types.FunctionDef{"run": fn},
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"empty", "  \n", nil},
		{"json object", `{"a": 1}`, map[string]any{"a": float64(1)}},
		{"json list", `[1, 2]`, []any{float64(1), float64(2)}},
		{"text", "hello world\n", "hello world"},
		{"json string", `"quoted"`, "quoted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeOutput([]byte(tt.in)))
		})
	}
}

func TestBindScript(t *testing.T) {
	b := newTestBinder(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		script  string
		params  map[string]any
		want    any
		wantErr string
	}{
		{
			name:   "echoes stdin",
			script: "cat",
			params: map[string]any{"name": "ada"},
			want:   map[string]any{"name": "ada"},
		},
		{
			name:   "reads call env",
			script: `echo "$TOOLPANE_TOOL_ID/$TOOLPANE_FUNCTION"`,
			want:   "deploy/run",
		},
		{
			name:   "nil params are an empty object",
			script: "cat",
			want:   map[string]any{},
		},
		{
			name:    "non-zero exit rejects with stderr",
			script:  "echo 'database is down' >&2; exit 3",
			wantErr: "script exited with status 3: database is down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fns, err := b.Bind(actionSpec("deploy", types.FunctionDef{Script: tt.script}), dir)
			require.NoError(t, err)

			got, err := fns["run"](context.Background(), tt.params)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindScriptSyntaxError(t *testing.T) {
	b := newTestBinder(t)
	_, err := b.Bind(actionSpec("deploy", types.FunctionDef{Script: "if then fi ("}), t.TempDir())
	assert.ErrorContains(t, err, "failed to bind function 'run' of tool 'deploy'")
}

func TestBindScriptContextCancelled(t *testing.T) {
	b := newTestBinder(t)
	fns, err := b.Bind(actionSpec("slow", types.FunctionDef{Script: "sleep 5"}), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = fns["run"](ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBindCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	b := newTestBinder(t)

	fns, err := b.Bind(actionSpec("echo", types.FunctionDef{Command: &types.CommandHandler{
		Run:  "sh",
		Args: []string{"-c", `cat; echo "$GREETING" >&2; test -z "$FAIL"`},
		Env:  map[string]string{"GREETING": "hi"},
	}}), t.TempDir())
	require.NoError(t, err)

	got, err := fns["run"](context.Background(), map[string]any{"x": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": true}, got)

	fns, err = b.Bind(actionSpec("fail", types.FunctionDef{Command: &types.CommandHandler{
		Run:  "sh",
		Args: []string{"-c", "echo broken >&2; exit 2"},
	}}), t.TempDir())
	require.NoError(t, err)

	_, err = fns["run"](context.Background(), nil)
	assert.EqualError(t, err, "command sh failed with exit code 2: broken")
}

func TestBindHTTP(t *testing.T) {
	var gotAuth, gotFunction string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFunction = r.Header.Get("X-Toolpane-Function")

		switch r.URL.Path {
		case "/ok":
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items": [], "totalItems": 0}`))
		case "/search":
			_, _ = w.Write([]byte("q=" + r.URL.Query().Get("q")))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error": "name is required"}`))
		}
	}))
	defer server.Close()

	b := newTestBinder(t)

	t.Run("post with bearer token", func(t *testing.T) {
		fns, err := b.Bind(actionSpec("users", types.FunctionDef{HTTP: &types.HTTPHandler{
			URL:         server.URL + "/ok",
			BearerToken: "tok",
		}}), "")
		require.NoError(t, err)

		got, err := fns["run"](context.Background(), map[string]any{"page": 1})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"items": []any{}, "totalItems": float64(0)}, got)
		assert.Equal(t, "Bearer tok", gotAuth)
		assert.Equal(t, "users__run", gotFunction)
		assert.Equal(t, map[string]any{"page": float64(1)}, gotBody)
	})

	t.Run("custom authorization header wins", func(t *testing.T) {
		fns, err := b.Bind(actionSpec("users", types.FunctionDef{HTTP: &types.HTTPHandler{
			URL:         server.URL + "/ok",
			BearerToken: "tok",
			Headers:     map[string]string{"Authorization": "Basic abc"},
		}}), "")
		require.NoError(t, err)

		_, err = fns["run"](context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Basic abc", gotAuth)
	})

	t.Run("get sends query parameters", func(t *testing.T) {
		fns, err := b.Bind(actionSpec("search", types.FunctionDef{HTTP: &types.HTTPHandler{
			URL:    server.URL + "/search",
			Method: "get",
		}}), "")
		require.NoError(t, err)

		got, err := fns["run"](context.Background(), map[string]any{"q": "ada"})
		require.NoError(t, err)
		assert.Equal(t, "q=ada", got)
	})

	t.Run("error status rejects", func(t *testing.T) {
		fns, err := b.Bind(actionSpec("users", types.FunctionDef{HTTP: &types.HTTPHandler{
			URL: server.URL + "/fail",
		}}), "")
		require.NoError(t, err)

		_, err = fns["run"](context.Background(), nil)
		assert.EqualError(t, err, "request failed with status 422: name is required")
	})
}
