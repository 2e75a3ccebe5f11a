// Package tool implements the tool-calling subsystem that exposes the
// scheduler dataset, session history, scoped memory and artifacts as named
// operations with schema validated arguments, consistent error handling and
// per-call history recording.
package tool

import (
	"fmt"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/internal/util"
)

// Tool defines the interface for a named operation invoked against a
// per-call core.Context.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and the per-call
	// Context, which provides access to the dataset snapshot, session
	// state and history, scoped memory and artifacts.
	Call(c *core.Context, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
