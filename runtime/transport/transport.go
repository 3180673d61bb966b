// Package transport opens the media and control channels to a realtime
// endpoint. Each Open creates a fresh connection that is never reused.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AltairaLabs/VoiceKit/runtime/media"
)

// DefaultSignalingTimeout bounds the offer/answer exchange.
const DefaultSignalingTimeout = 10 * time.Second

// Connection stages reported by ConnectionError.
const (
	StageMedia     = "media"
	StageOffer     = "offer"
	StageSignaling = "signaling"
	StageAnswer    = "answer"
	StageDial      = "dial"
)

// ErrNotOpen is returned by Send before the control channel opens or after
// it closes.
var ErrNotOpen = errors.New("control channel is not open")

// ConnectionError reports a failed handshake. StatusCode is set when the
// signaling endpoint answered with a non-2xx status.
type ConnectionError struct {
	Stage      string
	StatusCode int
	Cause      error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connection failed during %s (status %d): %v", e.Stage, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("connection failed during %s: %v", e.Stage, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ControlChannel carries JSON protocol messages. Messages delivers inbound
// payloads in arrival order; Closed signals that no more will arrive.
type ControlChannel interface {
	Send(v any) error
	Messages() <-chan []byte
	Opened() <-chan struct{}
	Closed() <-chan struct{}
	Close() error
}

// Connection is one live session with the endpoint.
type Connection struct {
	Control     ControlChannel
	RemoteAudio <-chan media.Frame

	once    sync.Once
	release func() error
	err     error
}

// NewConnection assembles a Connection. release frees everything the
// transport allocated and is called at most once.
func NewConnection(control ControlChannel, remote <-chan media.Frame, release func() error) *Connection {
	return &Connection{Control: control, RemoteAudio: remote, release: release}
}

// Close releases every transport resource. It is safe to call repeatedly.
func (c *Connection) Close() error {
	c.once.Do(func() {
		var errs []error
		if c.Control != nil {
			errs = append(errs, c.Control.Close())
		}
		if c.release != nil {
			errs = append(errs, c.release())
		}
		c.err = errors.Join(errs...)
	})
	return c.err
}

// Credential is what a transport needs from the token issuer. Voice, when
// set, overrides the transport's configured voice.
type Credential struct {
	Secret string
	Voice  string
}

// Transport opens connections. local supplies the microphone frames to
// send; it is read until it closes or the connection closes.
type Transport interface {
	Open(ctx context.Context, cred Credential, local media.Stream) (*Connection, error)
}
