package types

// ServerMetadata represents metadata about the toolpane server.
type ServerMetadata struct {
	Version string `json:"version"`
}

// AppInfo describes the aggregator a server is currently serving.
type AppInfo struct {
	Title string     `json:"title"`
	Mode  string     `json:"mode"`
	Tools []ToolInfo `json:"tools"`
}

// ToolInfo is the public view of one tool in the aggregator.
// Handler configurations are reduced to their kind.
type ToolInfo struct {
	ToolSpec

	// FilePath is the tool file the spec was loaded from, if any.
	FilePath string `json:"filePath,omitempty"`
}

// InvokeRequest is the payload to invoke a named function of a tool.
type InvokeRequest struct {
	Function string         `json:"function"`
	Params   map[string]any `json:"params,omitempty"`
}

// OperationRequest is the payload to invoke a content-level operation of a tool,
// eg- "load" on a table or "submit" on a form.
type OperationRequest struct {
	Params map[string]any `json:"params,omitempty"`
}

// InvocationError carries the message of a rejected invocation.
type InvocationError struct {
	Message string `json:"message"`
}

// InvocationResponse represents the settled state of a function call.
// It is designed to be passed down to the end user.
type InvocationResponse struct {
	State string           `json:"state"`
	Value any              `json:"value,omitempty"`
	Error *InvocationError `json:"error,omitempty"`
}

// Fulfilled returns true if the invocation completed with a value.
func (r *InvocationResponse) Fulfilled() bool {
	return r.State == "fulfilled"
}
