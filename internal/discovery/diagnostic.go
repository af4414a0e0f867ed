package discovery

import "fmt"

// Severity is the level of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes.
const (
	CodePatternSkipped = "pattern_skipped"
	CodeFileLoadFailed = "file_load_failed"
	CodeNoSpecExport   = "no_spec_export"
	CodeSpecInvalid    = "spec_invalid"
	CodeDuplicateID    = "duplicate_tool_id"
)

// Diagnostic is a non-fatal problem found during discovery.
// Diagnostics are returned to callers so the CLI can render them, in addition to being logged.
type Diagnostic struct {
	Severity Severity
	// Code is a machine-readable identifier, eg- "file_load_failed".
	Code    string
	Message string
	// Path is the file or pattern the diagnostic is about.
	Path  string
	Cause error
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s: %s", d.Severity, d.Path, d.Message)
	if d.Cause != nil {
		s += ": " + d.Cause.Error()
	}
	return s
}

func warning(code, path, msg string, cause error) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: msg, Path: path, Cause: cause}
}
