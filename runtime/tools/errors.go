package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for tool operations.
var (
	// ErrUnknownTool is returned when a call names a tool that was never registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolNameRequired is returned when registering a tool without a name.
	ErrToolNameRequired = errors.New("tool name is required")

	// ErrToolDescriptionRequired is returned when declaring a tool without a description.
	ErrToolDescriptionRequired = errors.New("tool description is required")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("tool handler is nil")
)

// ToolExecutionError reports a handler that failed, panicked or was given
// arguments that do not match its declared parameters.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Cause  error
}

func (e *ToolExecutionError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("tool %s (call %s) failed: %v", e.Tool, e.CallID, e.Cause)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
}

// Unwrap returns the handler's error.
func (e *ToolExecutionError) Unwrap() error {
	return e.Cause
}

// ValidationError describes arguments rejected by the tool's parameter schema.
type ValidationError struct {
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}
