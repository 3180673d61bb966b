// Package errors provides the structured error type shared by VoiceKit's
// collaborator clients (token issuer, catalog, signaling).
//
// ContextualError records which component failed, what it was doing and, for
// HTTP collaborators, the status code returned. It unwraps to its cause so
// callers can keep using errors.Is and errors.As.
//
//	err := errors.New("credentials", "Issue", cause).WithStatusCode(502)
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ContextualError is a structured error carrying component, operation and an
// optional status code.
type ContextualError struct {
	// Component identifies the package that produced the error ("credentials", "catalog", "transport").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is the HTTP status returned by a collaborator, or 0.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns "[component] Operation (status N): cause".
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)
	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

// Unwrap returns the underlying cause.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns e for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns e for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// Temporary reports whether retrying the operation may succeed: rate
// limiting and server-side failures are temporary, everything else is not.
func (e *ContextualError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// StatusCode returns the status code of the first ContextualError in err's
// chain, or 0.
func StatusCode(err error) int {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}

// IsTemporary reports whether err carries a ContextualError that is Temporary.
func IsTemporary(err error) bool {
	var ce *ContextualError
	return stderrors.As(err, &ce) && ce.Temporary()
}
