// Package handler binds the declarative function definitions of a tool spec to callable functions.
//
// Every handler kind receives the same parameter bag and produces a plain value:
// command and script functions read the bag as JSON on stdin and print their result on stdout,
// http functions receive it as the request body, mcp functions as tool arguments and sql
// functions as named query arguments.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/toolpane/toolpane/internal/db"
	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// Config holds the dependencies shared by all bound functions.
type Config struct {
	Logger *zap.Logger

	// DB resolves the databases used by sql functions. sql functions fail when it is nil.
	DB *db.Registry

	HTTPClient *http.Client

	// Timeout bounds command, script and http functions. Zero disables the limit.
	Timeout time.Duration

	// MCPInitTimeout bounds the initialization handshake with upstream MCP servers.
	MCPInitTimeout time.Duration
}

// Binder turns function definitions into invoke.Functions.
type Binder struct {
	logger     *zap.Logger
	db         *db.Registry
	httpClient *http.Client

	timeout        time.Duration
	mcpInitTimeout time.Duration
}

func NewBinder(c *Config) *Binder {
	b := &Binder{
		logger:         c.Logger,
		db:             c.DB,
		httpClient:     c.HTTPClient,
		timeout:        c.Timeout,
		mcpInitTimeout: c.MCPInitTimeout,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.httpClient == nil {
		b.httpClient = http.DefaultClient
	}
	if b.mcpInitTimeout <= 0 {
		b.mcpInitTimeout = 10 * time.Second
	}
	return b
}

// call identifies the function being executed. It is exposed to command and script functions
// through the environment.
type call struct {
	toolID   string
	function string
	// dir is the directory of the tool file, relative paths in handlers resolve against it.
	dir string
}

func (c call) String() string {
	return types.CanonicalFunctionName(c.toolID, c.function)
}

// Bind creates the functions declared by spec. dir is the directory of the tool file.
// A definition that cannot be prepared (eg- a script with a syntax error) fails the whole tool.
func (b *Binder) Bind(spec *types.ToolSpec, dir string) (invoke.Functions, error) {
	names := make([]string, 0, len(spec.Functions))
	for name := range spec.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	fns := make(invoke.Functions, len(names))
	for _, name := range names {
		def := spec.Functions[name]
		c := call{toolID: spec.ID, function: name, dir: dir}

		var (
			fn  invoke.Func
			err error
		)
		switch def.Kind() {
		case types.HandlerCommand:
			fn = b.commandFunc(c, def.Command)
		case types.HandlerScript:
			fn, err = b.scriptFunc(c, def.Script)
		case types.HandlerHTTP:
			fn = b.httpFunc(c, def.HTTP)
		case types.HandlerMCP:
			fn = b.mcpFunc(c, def.MCP)
		case types.HandlerSQL:
			fn = b.sqlFunc(c, def.SQL)
		default:
			err = fmt.Errorf("function must declare exactly one handler")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to bind function '%s' of tool '%s': %w", name, spec.ID, err)
		}
		fns[name] = fn
	}
	return fns, nil
}

func (b *Binder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// encodeParams serializes the parameter bag. A nil bag is sent as an empty object.
func encodeParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params as json: %w", err)
	}
	return data, nil
}

// decodeOutput interprets the output of a function.
// JSON is decoded, anything else is returned as trimmed text and empty output as nil.
func decodeOutput(out []byte) any {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}

// callEnv returns the environment variables describing a call, in KEY=VALUE form.
func callEnv(c call, input []byte) []string {
	return []string{
		"TOOLPANE_TOOL_ID=" + c.toolID,
		"TOOLPANE_FUNCTION=" + c.function,
		"TOOLPANE_PARAMS=" + string(input),
	}
}

// envSlice converts an env map into sorted KEY=VALUE pairs.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// lastLines returns at most n trailing non-empty lines of s, used to keep error messages short.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
