package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const tableSpecYAML = `
id: users
title: Users
description: Manage users
content:
  type: table
  loader: loadUsers
  updater: updateUser
  pageSize: 25
  columns:
    - key: name
      label: Name
      sortable: true
functions:
  loadUsers:
    sql:
      query: SELECT * FROM users
  updateUser:
    command: ./bin/update-user
`

func TestToolSpecDecodeYAML(t *testing.T) {
	var spec ToolSpec
	require.NoError(t, yaml.Unmarshal([]byte(tableSpecYAML), &spec))

	assert.Equal(t, "users", spec.ID)
	assert.Equal(t, ContentTable, spec.Content.Type)
	require.NotNil(t, spec.Content.Table)
	assert.Nil(t, spec.Content.Record)
	assert.Equal(t, "loadUsers", spec.Content.Table.Loader)
	assert.Equal(t, 25, spec.Content.Table.PageSize)
	require.Len(t, spec.Content.Table.Columns, 1)
	assert.True(t, spec.Content.Table.Columns[0].Sortable)

	assert.Equal(t, HandlerSQL, spec.Functions["loadUsers"].Kind())
	require.NotNil(t, spec.Functions["updateUser"].Command)
	assert.Equal(t, "./bin/update-user", spec.Functions["updateUser"].Command.Run)

	assert.NoError(t, spec.Validate())
}

func TestContentFunctionFor(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		op      Operation
		want    string
		wantOK  bool
	}{
		{"record load", Content{Type: ContentRecord, Record: &RecordContent{Loader: "get"}}, OperationLoad, "get", true},
		{"record run", Content{Type: ContentRecord, Record: &RecordContent{Loader: "get"}}, OperationRun, "", false},
		{"action run", Content{Type: ContentAction, Action: &ActionContent{Handler: "go"}}, OperationRun, "go", true},
		{"table update", Content{Type: ContentTable, Table: &TableContent{Loader: "l", Updater: "u"}}, OperationUpdate, "u", true},
		{"read-only table update", Content{Type: ContentTable, Table: &TableContent{Loader: "l"}}, OperationUpdate, "", false},
		{"form submit", Content{Type: ContentForm, Form: &FormContent{Submit: "s"}}, OperationSubmit, "s", true},
		{"form load without loader", Content{Type: ContentForm, Form: &FormContent{Submit: "s"}}, OperationLoad, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.content.FunctionFor(tt.op)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolSpecValidate(t *testing.T) {
	valid := func() ToolSpec {
		return ToolSpec{
			ID:      "deploy",
			Title:   "Deploy",
			Content: Content{Type: ContentAction, Action: &ActionContent{Handler: "run"}},
			Functions: map[string]FunctionDef{
				"run": {Script: "echo ok"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *ToolSpec)
		problem string
	}{
		{"empty id", func(s *ToolSpec) { s.ID = "" }, "id must not be empty"},
		{"bad id chars", func(s *ToolSpec) { s.ID = "de ploy" }, "must follow the regular expression"},
		{"double underscore", func(s *ToolSpec) { s.ID = "de__ploy" }, "multiple consecutive underscores"},
		{"trailing underscore", func(s *ToolSpec) { s.ID = "deploy_" }, "must not end with an underscore"},
		{"empty title", func(s *ToolSpec) { s.Title = " " }, "title must not be empty"},
		{"missing content", func(s *ToolSpec) { s.Content = Content{} }, "content is required"},
		{"unknown content", func(s *ToolSpec) { s.Content = Content{Type: "chart"} }, "unknown content type 'chart'"},
		{"missing handler ref", func(s *ToolSpec) { s.Content.Action.Handler = "" }, "must name a function for 'run'"},
		{"undefined function", func(s *ToolSpec) { s.Functions = nil }, "undefined function 'run'"},
		{"no handler kind", func(s *ToolSpec) { s.Functions["run"] = FunctionDef{} }, "no handler declared"},
		{
			"two handler kinds",
			func(s *ToolSpec) { s.Functions["run"] = FunctionDef{Script: "x", HTTP: &HTTPHandler{URL: "http://x"}} },
			"exactly one handler is allowed",
		},
		{
			"mcp without target",
			func(s *ToolSpec) { s.Functions["run"] = FunctionDef{MCP: &MCPHandler{Tool: "t"}} },
			"exactly one of url or command",
		},
	}

	s := valid()
	require.NoError(t, s.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestToolSpecValidateEmptyFunctions(t *testing.T) {
	// a form whose submit function is missing is invalid even when functions is empty
	s := ToolSpec{
		ID:      "profile",
		Title:   "Profile",
		Content: Content{Type: ContentForm, Form: &FormContent{}},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form content must name a function for 'submit'")
}

func TestToolSpecJSONHidesHandlerConfig(t *testing.T) {
	s := ToolSpec{
		ID:      "secret",
		Title:   "Secret",
		Content: Content{Type: ContentRecord, Record: &RecordContent{Loader: "get"}},
		Functions: map[string]FunctionDef{
			"get": {HTTP: &HTTPHandler{URL: "https://internal", BearerToken: "s3cr3t"}},
		},
	}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "s3cr3t")
	assert.Contains(t, string(b), `"functions":{"get":{"kind":"http"}}`)
	assert.Contains(t, string(b), `"content":{"loader":"get","type":"record"}`)

	var decoded ToolSpec
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NotNil(t, decoded.Content.Record)
	assert.Equal(t, "get", decoded.Content.Record.Loader)
}

func TestCanonicalFunctionName(t *testing.T) {
	name := CanonicalFunctionName("users", "load__all")
	assert.Equal(t, "users__load__all", name)

	toolID, fn, ok := SplitCanonicalFunctionName(name)
	assert.True(t, ok)
	assert.Equal(t, "users", toolID)
	assert.Equal(t, "load__all", fn)

	_, _, ok = SplitCanonicalFunctionName("users")
	assert.False(t, ok)
}
