package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
)

func newTableTool(id string) *Tool {
	return &Tool{
		Spec: &types.ToolSpec{
			ID:    id,
			Title: id,
			Content: types.Content{
				Type:  types.ContentTable,
				Table: &types.TableContent{Loader: "load", Updater: "update"},
			},
			Functions: map[string]types.FunctionDef{
				"load":   {Script: "x"},
				"update": {Script: "x"},
			},
		},
		Functions: invoke.Functions{
			"load": func(ctx context.Context, params map[string]any) (any, error) {
				return map[string]any{"items": []any{}, "totalItems": 0, "page": params["page"]}, nil
			},
		},
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New(&Config{Tools: []*Tool{newTableTool("a"), newTableTool("a")}})
	assert.ErrorContains(t, err, "duplicate tool id 'a'")
}

func TestAppInvoke(t *testing.T) {
	a, err := New(&Config{Title: "Ops", Tools: []*Tool{newTableTool("users")}})
	require.NoError(t, err)
	assert.Equal(t, ModeDashboard, a.Mode())

	var states []invoke.State
	observe := func(e invoke.Event) { states = append(states, e.State) }

	res, err := a.Invoke(context.Background(), "users", invoke.Request{Function: "load"}, observe)
	require.NoError(t, err)
	assert.Equal(t, invoke.StateFulfilled, res.State)
	assert.Equal(t, []invoke.State{invoke.StatePending, invoke.StateFulfilled}, states)

	// update is declared but not bound
	res, err = a.InvokeOperation(context.Background(), "users", types.OperationUpdate, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, invoke.StateRejected, res.State)
	assert.ErrorContains(t, res.Err, "update")

	res, err = a.InvokeOperation(context.Background(), "users", types.OperationLoad, map[string]any{"page": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Value.(map[string]any)["page"])

	_, err = a.InvokeOperation(context.Background(), "users", types.OperationSubmit, nil, nil)
	assert.True(t, errors.Is(err, ErrOperationNotSupported))

	_, err = a.Invoke(context.Background(), "missing", invoke.Request{Function: "load"}, nil)
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

func TestAppReplace(t *testing.T) {
	a, err := New(&Config{Tools: []*Tool{newTableTool("a"), newTableTool("b")}})
	require.NoError(t, err)

	var gotRemoved, gotCurrent []string
	a.OnToolsChange(func(removed, current []string) {
		gotRemoved, gotCurrent = removed, current
	})

	require.NoError(t, a.Replace([]*Tool{newTableTool("b"), newTableTool("c")}))
	assert.Equal(t, []string{"a"}, gotRemoved)
	assert.Equal(t, []string{"b", "c"}, gotCurrent)

	_, ok := a.Tool("a")
	assert.False(t, ok)
	_, ok = a.Tool("c")
	assert.True(t, ok)

	// an invalid set keeps the previous one
	err = a.Replace([]*Tool{newTableTool("x"), newTableTool("x")})
	require.Error(t, err)
	assert.Len(t, a.Tools(), 2)
}

func TestAppInfo(t *testing.T) {
	tool := newTableTool("users")
	tool.FilePath = "/p/tools/users.tool.yaml"
	a, err := New(&Config{Title: "Ops", Mode: ModeFocus, Tools: []*Tool{tool}})
	require.NoError(t, err)

	info := a.Info()
	assert.Equal(t, "Ops", info.Title)
	assert.Equal(t, "focus", info.Mode)
	require.Len(t, info.Tools, 1)
	assert.Equal(t, "users", info.Tools[0].ID)
	assert.Equal(t, "/p/tools/users.tool.yaml", info.Tools[0].FilePath)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDashboard, m)

	m, err = ParseMode("library")
	require.NoError(t, err)
	assert.Equal(t, ModeLibrary, m)

	_, err = ParseMode("sidebar")
	assert.Error(t, err)
}
