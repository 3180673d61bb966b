package router

import "fmt"

const maxSnippet = 120

// ProtocolParseError reports an inbound message that could not be decoded.
// The message is dropped and the session carries on.
type ProtocolParseError struct {
	Snippet string
	Cause   error
}

func newParseError(raw []byte, cause error) *ProtocolParseError {
	s := string(raw)
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return &ProtocolParseError{Snippet: s, Cause: cause}
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("malformed control message %q: %v", e.Snippet, e.Cause)
}

func (e *ProtocolParseError) Unwrap() error { return e.Cause }
