package mcp

import (
	"reflect"
	"testing"

	"github.com/toolpane/toolpane/pkg/types"
)

func TestJSONSchemaType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"number", "number"},
		{"boolean", "boolean"},
		{"checkbox", "boolean"},
		{"text", "string"},
		{"select", "string"},
		{"", "string"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := jsonSchemaType(tt.input); got != tt.want {
				t.Errorf("jsonSchemaType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInputSchema(t *testing.T) {
	schema := inputSchema(map[string]types.InputDef{
		"name":  {Type: "text", Label: "Name", Required: true},
		"count": {Type: "number", Description: "How many", Default: 3},
		"env":   {Options: []string{"dev", "prod"}, Required: true},
	})

	if schema.Type != "object" {
		t.Errorf("expected object schema, got %s", schema.Type)
	}
	if want := []string{"env", "name"}; !reflect.DeepEqual(schema.Required, want) {
		t.Errorf("required = %v, want %v", schema.Required, want)
	}

	want := map[string]any{
		"name":  map[string]any{"type": "string", "description": "Name"},
		"count": map[string]any{"type": "number", "description": "How many", "default": 3},
		"env":   map[string]any{"type": "string", "enum": []string{"dev", "prod"}},
	}
	if !reflect.DeepEqual(schema.Properties, want) {
		t.Errorf("properties = %#v, want %#v", schema.Properties, want)
	}
}

func TestConvertToolToMcpObjects(t *testing.T) {
	spec := &types.ToolSpec{
		ID:          "users",
		Title:       "Users",
		Description: "Manage users",
		Content: types.Content{
			Type:  types.ContentTable,
			Table: &types.TableContent{Loader: "load", Updater: "save"},
		},
		Functions: map[string]types.FunctionDef{
			"save": {Script: "true"},
			"load": {Script: "true"},
			"ping": {Script: "true"},
		},
	}

	tools := convertToolToMcpObjects(spec)
	var names, descriptions []string
	for _, tool := range tools {
		names = append(names, tool.Name)
		descriptions = append(descriptions, tool.Description)
	}

	if want := []string{"users__load", "users__ping", "users__save"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
	wantDescriptions := []string{
		"Users: load (table load). Manage users",
		"Users: ping. Manage users",
		"Users: save (table update). Manage users",
	}
	if !reflect.DeepEqual(descriptions, wantDescriptions) {
		t.Errorf("descriptions = %v, want %v", descriptions, wantDescriptions)
	}
}
