package session

import (
	"errors"
	"fmt"
)

// Startup stages reported by StartupError.
const (
	StageMedia      = "media"
	StageCredential = "credential"
	StageConnect    = "connect"
	StageConfigure  = "configure"
)

var (
	// ErrAlreadyStarted is returned by Start when the controller is not idle.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotActive is returned by SendText outside an active session.
	ErrNotActive = errors.New("session is not active")

	// ErrEmptyMessage is returned by SendText for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrCredentialExpired is returned when the issuer hands out a token
	// that has already expired.
	ErrCredentialExpired = errors.New("session credential already expired")
)

// StartupError reports a failed Start. Everything acquired before Stage was
// released and the controller is idle again. Cause is a
// *media.PermissionError, a credential error, a *transport.ConnectionError
// or a send failure while configuring the channel.
type StartupError struct {
	Stage string
	Cause error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("session start failed during %s: %v", e.Stage, e.Cause)
}

func (e *StartupError) Unwrap() error { return e.Cause }
