package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolIDSep separates a tool id from a function name in canonical function names,
// eg- "users__loadUsers". Tool ids must therefore never contain it.
const ToolIDSep = "__"

// Only allow letters, numbers, hyphens, and underscores
var validToolID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ContentType identifies which presentation variant a tool uses.
type ContentType string

const (
	ContentRecord ContentType = "record"
	ContentAction ContentType = "action"
	ContentTable  ContentType = "table"
	ContentForm   ContentType = "form"
)

// Operation is a content-level interaction that maps onto one of the tool's functions.
type Operation string

const (
	OperationLoad   Operation = "load"
	OperationRun    Operation = "run"
	OperationUpdate Operation = "update"
	OperationSubmit Operation = "submit"
)

// ToolSpec is the user-authored declarative description of one dashboard unit.
type ToolSpec struct {
	ID          string                 `yaml:"id" json:"id"`
	Title       string                 `yaml:"title" json:"title"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      map[string]InputDef    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Content     Content                `yaml:"content" json:"content"`
	Functions   map[string]FunctionDef `yaml:"functions" json:"functions"`
}

// InputDef describes one named input the UI collects before calling a function.
type InputDef struct {
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Label       string   `yaml:"label,omitempty" json:"label,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
}

type FieldDef struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly bool   `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`
}

type ColumnDef struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Sortable bool   `yaml:"sortable,omitempty" json:"sortable,omitempty"`
	Editable bool   `yaml:"editable,omitempty" json:"editable,omitempty"`
}

// RecordContent displays a single object returned by Loader.
type RecordContent struct {
	Loader string     `yaml:"loader" json:"loader"`
	Fields []FieldDef `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// ActionContent renders a trigger that calls Handler.
type ActionContent struct {
	Handler string `yaml:"handler" json:"handler"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	Confirm string `yaml:"confirm,omitempty" json:"confirm,omitempty"`
}

// TableContent renders a paginated table loaded by Loader.
// Updater is optional; without it the table is read-only.
type TableContent struct {
	Loader   string      `yaml:"loader" json:"loader"`
	Updater  string      `yaml:"updater,omitempty" json:"updater,omitempty"`
	Columns  []ColumnDef `yaml:"columns,omitempty" json:"columns,omitempty"`
	PageSize int         `yaml:"pageSize,omitempty" json:"pageSize,omitempty"`
	ItemKey  string      `yaml:"itemKey,omitempty" json:"itemKey,omitempty"`
}

// FormContent renders an edit form submitted through Submit.
// Loader optionally provides the original data the form starts from.
type FormContent struct {
	Submit string     `yaml:"submit" json:"submit"`
	Loader string     `yaml:"loader,omitempty" json:"loader,omitempty"`
	Fields []FieldDef `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Content is a tagged union over the four presentation variants.
// Exactly one of the variant pointers matching Type is set after decoding.
type Content struct {
	Type ContentType

	Record *RecordContent
	Action *ActionContent
	Table  *TableContent
	Form   *FormContent
}

func (c *Content) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type ContentType `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	*c = Content{Type: head.Type}

	switch head.Type {
	case ContentRecord:
		c.Record = &RecordContent{}
		return value.Decode(c.Record)
	case ContentAction:
		c.Action = &ActionContent{}
		return value.Decode(c.Action)
	case ContentTable:
		c.Table = &TableContent{}
		return value.Decode(c.Table)
	case ContentForm:
		c.Form = &FormContent{}
		return value.Decode(c.Form)
	}
	// unknown variants are reported by Validate, not by the decoder
	return nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*c = Content{Type: head.Type}

	switch head.Type {
	case ContentRecord:
		c.Record = &RecordContent{}
		return json.Unmarshal(data, c.Record)
	case ContentAction:
		c.Action = &ActionContent{}
		return json.Unmarshal(data, c.Action)
	case ContentTable:
		c.Table = &TableContent{}
		return json.Unmarshal(data, c.Table)
	case ContentForm:
		c.Form = &FormContent{}
		return json.Unmarshal(data, c.Form)
	}
	return nil
}

// MarshalJSON flattens the active variant next to its "type" discriminator.
func (c Content) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if v := c.variant(); v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
	}
	out["type"] = c.Type
	return json.Marshal(out)
}

func (c Content) variant() any {
	switch {
	case c.Type == ContentRecord && c.Record != nil:
		return c.Record
	case c.Type == ContentAction && c.Action != nil:
		return c.Action
	case c.Type == ContentTable && c.Table != nil:
		return c.Table
	case c.Type == ContentForm && c.Form != nil:
		return c.Form
	}
	return nil
}

// FunctionFor returns the name of the function the content calls for op.
func (c Content) FunctionFor(op Operation) (string, bool) {
	var name string
	switch {
	case c.Record != nil && op == OperationLoad:
		name = c.Record.Loader
	case c.Action != nil && op == OperationRun:
		name = c.Action.Handler
	case c.Table != nil && op == OperationLoad:
		name = c.Table.Loader
	case c.Table != nil && op == OperationUpdate:
		name = c.Table.Updater
	case c.Form != nil && op == OperationSubmit:
		name = c.Form.Submit
	case c.Form != nil && op == OperationLoad:
		name = c.Form.Loader
	}
	return name, name != ""
}

// FunctionRefs lists every function name the content references.
func (c Content) FunctionRefs() []string {
	var refs []string
	for _, op := range []Operation{OperationLoad, OperationRun, OperationUpdate, OperationSubmit} {
		if name, ok := c.FunctionFor(op); ok {
			refs = append(refs, name)
		}
	}
	return refs
}

// HandlerKind is the way a declarative function is executed.
type HandlerKind string

const (
	HandlerCommand HandlerKind = "command"
	HandlerScript  HandlerKind = "script"
	HandlerHTTP    HandlerKind = "http"
	HandlerMCP     HandlerKind = "mcp"
	HandlerSQL     HandlerKind = "sql"
)

// CommandHandler runs a child process.
// The parameter bag is written to its stdin as JSON and its stdout is the result.
type CommandHandler struct {
	// Run is the program to execute, resolved relative to the tool file's directory
	// when it contains a path separator.
	Run string `yaml:"run" json:"run"`

	// Args contains a list of strings that are passed as arguments to the program
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env describes extra environment variables for the process
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Dir overrides the working directory, which defaults to the tool file's directory.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// UnmarshalYAML accepts both the shorthand `command: ./bin/tool` and the full mapping.
func (h *CommandHandler) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		h.Run = value.Value
		return nil
	}
	type plain CommandHandler
	return value.Decode((*plain)(h))
}

type HTTPHandler struct {
	// URL must be a valid http/https URL.
	URL string `yaml:"url" json:"url"`

	// Method defaults to POST.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// BearerToken is sent in the Authorization header unless Headers already set one.
	BearerToken string `yaml:"bearerToken,omitempty" json:"bearerToken,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// MCPHandler calls Tool on an MCP server reached either over streamable http (URL)
// or by spawning a stdio server (Command).
type MCPHandler struct {
	Tool string `yaml:"tool" json:"tool"`

	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	BearerToken string            `yaml:"bearerToken,omitempty" json:"bearerToken,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// SQLHandler runs Query with the parameter bag bound as named arguments (@name).
type SQLHandler struct {
	// DSN is a postgres:// url or a sqlite file path. Empty means the server's default database.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`

	Query string `yaml:"query" json:"query"`

	// CountQuery, when set, turns the result into {items, totalItems}.
	CountQuery string `yaml:"countQuery,omitempty" json:"countQuery,omitempty"`

	// One returns the first row instead of a list, or nil when there is none.
	One bool `yaml:"one,omitempty" json:"one,omitempty"`

	// Exec runs Query as a statement and returns {rowsAffected}.
	Exec bool `yaml:"exec,omitempty" json:"exec,omitempty"`
}

// FunctionDef declares how one named function runs. Exactly one handler must be set.
type FunctionDef struct {
	Command *CommandHandler `yaml:"command,omitempty"`
	Script  string          `yaml:"script,omitempty"`
	HTTP    *HTTPHandler    `yaml:"http,omitempty"`
	MCP     *MCPHandler     `yaml:"mcp,omitempty"`
	SQL     *SQLHandler     `yaml:"sql,omitempty"`
}

// Kinds returns every handler kind set on the definition.
func (f FunctionDef) Kinds() []HandlerKind {
	var kinds []HandlerKind
	if f.Command != nil {
		kinds = append(kinds, HandlerCommand)
	}
	if f.Script != "" {
		kinds = append(kinds, HandlerScript)
	}
	if f.HTTP != nil {
		kinds = append(kinds, HandlerHTTP)
	}
	if f.MCP != nil {
		kinds = append(kinds, HandlerMCP)
	}
	if f.SQL != nil {
		kinds = append(kinds, HandlerSQL)
	}
	return kinds
}

// Kind returns the single handler kind, or "" when none or several are set.
func (f FunctionDef) Kind() HandlerKind {
	kinds := f.Kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// MarshalJSON only exposes the handler kind.
// Handler configs may carry tokens and connection strings that must not reach the UI.
func (f FunctionDef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"kind": f.Kind()})
}

// ValidationError lists every structural problem found in a tool spec.
type ValidationError struct {
	ID       string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tool spec '%s': %s", e.ID, strings.Join(e.Problems, "; "))
}

// ValidateToolID checks that a tool id can be used as a registry key and as the prefix of
// canonical function names.
func ValidateToolID(id string) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}
	if !validToolID.MatchString(id) {
		return fmt.Errorf("id '%s' must follow the regular expression %s", id, validToolID)
	}
	if strings.Contains(id, ToolIDSep) {
		return fmt.Errorf("id '%s' must not contain multiple consecutive underscores", id)
	}
	if strings.HasSuffix(id, "_") {
		// `users_` + `__` + `load` would split into `users` + `_load`
		return fmt.Errorf("id '%s' must not end with an underscore", id)
	}
	return nil
}

// Validate checks the structural shape of the spec. Business semantics are not checked.
func (s *ToolSpec) Validate() error {
	var problems []string

	if err := ValidateToolID(s.ID); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(s.Title) == "" {
		problems = append(problems, "title must not be empty")
	}

	switch s.Content.Type {
	case "":
		problems = append(problems, "content is required")
	case ContentRecord, ContentAction, ContentTable, ContentForm:
		problems = append(problems, s.validateContentRefs()...)
	default:
		problems = append(problems, fmt.Sprintf("unknown content type '%s'", s.Content.Type))
	}

	names := make([]string, 0, len(s.Functions))
	for name := range s.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.Functions[name].validate(); err != nil {
			problems = append(problems, fmt.Sprintf("function '%s': %v", name, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{ID: s.ID, Problems: problems}
	}
	return nil
}

func (s *ToolSpec) validateContentRefs() []string {
	var problems []string

	var required []Operation
	switch s.Content.Type {
	case ContentRecord:
		required = []Operation{OperationLoad}
	case ContentAction:
		required = []Operation{OperationRun}
	case ContentTable:
		required = []Operation{OperationLoad}
	case ContentForm:
		required = []Operation{OperationSubmit}
	}
	for _, op := range required {
		if _, ok := s.Content.FunctionFor(op); !ok {
			problems = append(problems, fmt.Sprintf("%s content must name a function for '%s'", s.Content.Type, op))
		}
	}

	for _, ref := range s.Content.FunctionRefs() {
		if _, ok := s.Functions[ref]; !ok {
			problems = append(problems, fmt.Sprintf("content references undefined function '%s'", ref))
		}
	}
	return problems
}

func (f FunctionDef) validate() error {
	kinds := f.Kinds()
	switch len(kinds) {
	case 0:
		return fmt.Errorf("no handler declared, expected one of command, script, http, mcp, sql")
	case 1:
	default:
		return fmt.Errorf("exactly one handler is allowed, found %v", kinds)
	}

	switch kinds[0] {
	case HandlerCommand:
		if f.Command.Run == "" {
			return fmt.Errorf("command.run is required")
		}
	case HandlerHTTP:
		if f.HTTP.URL == "" {
			return fmt.Errorf("http.url is required")
		}
	case HandlerMCP:
		if f.MCP.Tool == "" {
			return fmt.Errorf("mcp.tool is required")
		}
		if (f.MCP.URL == "") == (f.MCP.Command == "") {
			return fmt.Errorf("mcp needs exactly one of url or command")
		}
	case HandlerSQL:
		if f.SQL.Query == "" {
			return fmt.Errorf("sql.query is required")
		}
	}
	return nil
}

// CanonicalFunctionName combines a tool id and a function name into a name unique across the app.
func CanonicalFunctionName(toolID, function string) string {
	return toolID + ToolIDSep + function
}

// SplitCanonicalFunctionName splits a canonical name into tool id and function name.
func SplitCanonicalFunctionName(name string) (string, string, bool) {
	return strings.Cut(name, ToolIDSep)
}
