// Package app provides the aggregator that holds the tools being served and routes invocations to them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/internal/telemetry"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// Mode is the presentation mode of an aggregator.
type Mode string

const (
	// ModeDashboard shows every tool with navigation.
	ModeDashboard Mode = "dashboard"
	// ModeFocus shows a single tool without navigation.
	ModeFocus Mode = "focus"
	// ModeLibrary is an aggregator authored by hand and served as-is.
	ModeLibrary Mode = "library"
)

// ParseMode converts a string into a Mode. Empty defaults to dashboard.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeDashboard, nil
	case ModeDashboard, ModeFocus, ModeLibrary:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode '%s'", s)
}

var (
	ErrToolNotFound          = errors.New("tool not found")
	ErrOperationNotSupported = errors.New("operation not supported by tool content")
)

// Tool is a spec bound to callable functions.
type Tool struct {
	Spec      *types.ToolSpec
	FilePath  string
	Functions invoke.Functions
}

// ToolsChangeCallback is called after the tool set of an App has been replaced.
// It receives the ids of the tools that were removed and of those now present.
type ToolsChangeCallback func(removed, current []string)

// Config holds the parameters for creating an App.
type Config struct {
	Title string
	Mode  Mode
	Tools []*Tool

	Metrics telemetry.CustomMetrics
	Logger  *zap.Logger
}

// App is an aggregator instance: an ordered set of tools keyed by id.
// The tool set can be swapped at runtime, eg- after files changed in watch mode.
type App struct {
	title string
	mode  Mode

	tools []*Tool
	byID  map[string]*Tool
	mu    sync.RWMutex

	changeCallbacks []ToolsChangeCallback

	metrics telemetry.CustomMetrics
	logger  *zap.Logger
}

// New creates an App. Tool ids must be unique.
func New(c *Config) (*App, error) {
	a := &App{
		title:   c.Title,
		mode:    c.Mode,
		metrics: c.Metrics,
		logger:  c.Logger,
	}
	if a.mode == "" {
		a.mode = ModeDashboard
	}
	if a.metrics == nil {
		a.metrics = telemetry.NewNoopCustomMetrics()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	byID, err := index(c.Tools)
	if err != nil {
		return nil, err
	}
	a.tools = append([]*Tool(nil), c.Tools...)
	a.byID = byID
	return a, nil
}

func index(tools []*Tool) (map[string]*Tool, error) {
	byID := make(map[string]*Tool, len(tools))
	for _, t := range tools {
		if _, exists := byID[t.Spec.ID]; exists {
			return nil, fmt.Errorf("duplicate tool id '%s'", t.Spec.ID)
		}
		byID[t.Spec.ID] = t
	}
	return byID, nil
}

func (a *App) Title() string {
	return a.title
}

func (a *App) Mode() Mode {
	return a.mode
}

// Tools returns the current tools in order.
func (a *App) Tools() []*Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*Tool(nil), a.tools...)
}

// Tool returns the tool with the given id.
func (a *App) Tool(id string) (*Tool, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.byID[id]
	return t, ok
}

// Replace swaps the whole tool set and notifies the registered callbacks.
// The previous set stays in place if the new one is invalid.
func (a *App) Replace(tools []*Tool) error {
	byID, err := index(tools)
	if err != nil {
		return err
	}

	a.mu.Lock()
	var removed []string
	for id := range a.byID {
		if _, ok := byID[id]; !ok {
			removed = append(removed, id)
		}
	}
	a.tools = append([]*Tool(nil), tools...)
	a.byID = byID
	callbacks := append([]ToolsChangeCallback(nil), a.changeCallbacks...)
	a.mu.Unlock()

	current := make([]string, len(tools))
	for i, t := range tools {
		current[i] = t.Spec.ID
	}
	for _, cb := range callbacks {
		cb(removed, current)
	}
	return nil
}

// OnToolsChange registers a callback invoked after every Replace.
func (a *App) OnToolsChange(cb ToolsChangeCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changeCallbacks = append(a.changeCallbacks, cb)
}

// Invoke calls a named function of a tool through the invocation contract.
// Only an unknown tool is reported as an error; everything else settles into the Result.
func (a *App) Invoke(ctx context.Context, toolID string, req invoke.Request, observe invoke.Observer) (invoke.Result, error) {
	t, ok := a.Tool(toolID)
	if !ok {
		return invoke.Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}

	started := time.Now()
	res := invoke.Invoke(ctx, t.Functions, req, observe)

	outcome := telemetry.InvocationOutcomeFulfilled
	if res.State == invoke.StateRejected {
		outcome = telemetry.InvocationOutcomeRejected
		a.logger.Debug(
			"invocation rejected",
			zap.String("tool", toolID), zap.String("function", req.Function), zap.Error(res.Err),
		)
	}
	a.metrics.RecordInvocation(ctx, toolID, req.Function, outcome, time.Since(started))
	return res, nil
}

// InvokeOperation resolves op against the tool's content and invokes the function it names,
// eg- "load" on a table calls the table's loader.
func (a *App) InvokeOperation(
	ctx context.Context, toolID string, op types.Operation, params map[string]any, observe invoke.Observer,
) (invoke.Result, error) {
	t, ok := a.Tool(toolID)
	if !ok {
		return invoke.Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}
	fn, ok := t.Spec.Content.FunctionFor(op)
	if !ok {
		return invoke.Result{}, fmt.Errorf("%w: %s content of tool '%s' has no '%s'",
			ErrOperationNotSupported, t.Spec.Content.Type, toolID, op)
	}
	return a.Invoke(ctx, toolID, invoke.Request{Function: fn, Params: params}, observe)
}

// Info returns the public description of the app.
func (a *App) Info() types.AppInfo {
	tools := a.Tools()
	info := types.AppInfo{
		Title: a.title,
		Mode:  string(a.mode),
		Tools: make([]types.ToolInfo, len(tools)),
	}
	for i, t := range tools {
		info.Tools[i] = t.Info()
	}
	return info
}

// Info returns the public description of the tool.
func (t *Tool) Info() types.ToolInfo {
	return types.ToolInfo{ToolSpec: *t.Spec, FilePath: t.FilePath}
}
