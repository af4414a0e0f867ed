package mcp

import (
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolpane/toolpane/pkg/types"
)

// convertToolToMcpObjects creates one mcp.Tool per function of the spec.
// The spec's inputs become the input schema of every function.
func convertToolToMcpObjects(spec *types.ToolSpec) []mcp.Tool {
	names := make([]string, 0, len(spec.Functions))
	for name := range spec.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := inputSchema(spec.Inputs)
	tools := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, mcp.Tool{
			Name:        types.CanonicalFunctionName(spec.ID, name),
			Description: functionDescription(spec, name),
			InputSchema: schema,
		})
	}
	return tools
}

func functionDescription(spec *types.ToolSpec, function string) string {
	desc := fmt.Sprintf("%s: %s", spec.Title, function)
	for _, op := range []types.Operation{types.OperationLoad, types.OperationRun, types.OperationUpdate, types.OperationSubmit} {
		if fn, ok := spec.Content.FunctionFor(op); ok && fn == function {
			desc = fmt.Sprintf("%s (%s %s)", desc, spec.Content.Type, op)
			break
		}
	}
	if spec.Description != "" {
		desc += ". " + spec.Description
	}
	return desc
}

// inputSchema converts input definitions into a JSON schema object.
func inputSchema(inputs map[string]types.InputDef) mcp.ToolInputSchema {
	schema := mcp.ToolInputSchema{
		Type:       "object",
		Properties: make(map[string]any, len(inputs)),
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		in := inputs[name]
		prop := map[string]any{"type": jsonSchemaType(in.Type)}
		if in.Description != "" {
			prop["description"] = in.Description
		} else if in.Label != "" {
			prop["description"] = in.Label
		}
		if len(in.Options) > 0 {
			prop["enum"] = in.Options
		}
		if in.Default != nil {
			prop["default"] = in.Default
		}
		schema.Properties[name] = prop
		if in.Required {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

func jsonSchemaType(inputType string) string {
	switch inputType {
	case "number", "integer", "boolean", "object", "array":
		return inputType
	case "checkbox", "toggle":
		return "boolean"
	default:
		return "string"
	}
}
