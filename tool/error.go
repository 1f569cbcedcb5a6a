package tool

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CodeMissingType is reported when a declaration has neither type nor kind.
	CodeMissingType = "TL-001"
	// CodeUnsupportedType is reported for a discriminant outside Kinds().
	CodeUnsupportedType = "TL-002"
	// CodeMissingVectorStore is reported for a file_search without vector_store_id.
	CodeMissingVectorStore = "TL-003"
	// CodeMissingSpecification aborts a build: openapi without specification/spec_url.
	CodeMissingSpecification = "TL-010"
	// CodeMissingServerURL aborts a build: mcp without server_url.
	CodeMissingServerURL = "TL-011"
	// CodeInvalidOption aborts a build: an option value of the wrong shape.
	CodeInvalidOption = "TL-012"
)

// ValidationError is a fatal declaration problem. It aborts the whole build.
type ValidationError struct {
	Code    string `json:"code"`
	ToolID  string `json:"tool_id"`
	Kind    Kind   `json:"kind"`
	Option  string `json:"option,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("%s tool %q is invalid", e.Kind, e.ToolID)
	}
	return "tool: " + msg
}

// AsValidationError reports whether err carries a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

func missingSpecification(decl Declaration) *ValidationError {
	return &ValidationError{
		Code:    CodeMissingSpecification,
		ToolID:  decl.ID,
		Kind:    KindOpenAPI,
		Option:  "specification",
		Message: fmt.Sprintf("OpenAPI tool %q missing 'specification' URL", decl.ID),
	}
}

func missingServerURL(decl Declaration) *ValidationError {
	return &ValidationError{
		Code:    CodeMissingServerURL,
		ToolID:  decl.ID,
		Kind:    KindMCP,
		Option:  "server_url",
		Message: fmt.Sprintf("MCP tool %q missing 'server_url'", decl.ID),
	}
}

func invalidOption(decl Declaration, key, want string, got any) *ValidationError {
	return &ValidationError{
		Code:    CodeInvalidOption,
		ToolID:  decl.ID,
		Kind:    Kind(decl.Type),
		Option:  key,
		Message: fmt.Sprintf("%s tool %q option %q must be %s, got %T", decl.Type, decl.ID, key, want, got),
	}
}
