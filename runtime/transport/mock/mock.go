// Package mock provides an in-memory Transport for tests. The test side
// injects inbound control messages and inspects what the session sent.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/AltairaLabs/VoiceKit/runtime/media"
	"github.com/AltairaLabs/VoiceKit/runtime/transport"
)

// Transport hands out Conns. OpenErr, when set, makes Open fail.
type Transport struct {
	mu      sync.Mutex
	OpenErr error
	// DeferOpen leaves the control channel closed until Conn.Open is called.
	DeferOpen bool
	conns     []*Conn
	creds     []transport.Credential
}

// New creates a mock transport whose channels open immediately.
func New() *Transport {
	return &Transport{}
}

// Open implements transport.Transport.
func (t *Transport) Open(ctx context.Context, cred transport.Credential, local media.Stream) (*transport.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.creds = append(t.creds, cred)
	if t.OpenErr != nil {
		return nil, t.OpenErr
	}

	c := &Conn{remote: make(chan media.Frame, 16)}
	c.channel = transport.NewChannel(func(data []byte) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.SendErr != nil {
			return c.SendErr
		}
		c.sent = append(c.sent, data)
		return nil
	}, func() error {
		c.mu.Lock()
		c.closeCount++
		c.mu.Unlock()
		return nil
	})
	if !t.DeferOpen {
		c.channel.MarkOpen()
	}
	c.local = local
	c.conn = transport.NewConnection(c.channel, c.remote, func() error {
		c.mu.Lock()
		c.released = true
		c.mu.Unlock()
		return nil
	})
	t.conns = append(t.conns, c)
	return c.conn, nil
}

// Conns returns every connection opened so far.
func (t *Transport) Conns() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Conn(nil), t.conns...)
}

// Last returns the most recent connection, or nil.
func (t *Transport) Last() *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// Credentials returns the credentials passed to Open.
func (t *Transport) Credentials() []transport.Credential {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.Credential(nil), t.creds...)
}

// Conn is the test side of one mock connection.
type Conn struct {
	mu         sync.Mutex
	channel    *transport.Channel
	conn       *transport.Connection
	remote     chan media.Frame
	local      media.Stream
	sent       [][]byte
	closeCount int
	released   bool

	// SendErr makes every Send fail.
	SendErr error
}

// Open marks the control channel open.
func (c *Conn) Open() { c.channel.MarkOpen() }

// Inject delivers a raw inbound message.
func (c *Conn) Inject(raw string) { c.channel.Deliver([]byte(raw)) }

// InjectJSON marshals v and delivers it.
func (c *Conn) InjectJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.channel.Deliver(data)
	return nil
}

// PlayRemote pushes a frame onto the remote audio stream.
func (c *Conn) PlayRemote(f media.Frame) {
	select {
	case c.remote <- f:
	default:
	}
}

// Drop simulates the endpoint closing the channel.
func (c *Conn) Drop() { _ = c.channel.Close() }

// Sent returns the raw outbound messages.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// SentTypes returns the "type" of every outbound message.
func (c *Conn) SentTypes() []string {
	var types []string
	for _, raw := range c.Sent() {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(raw, &head)
		types = append(types, head.Type)
	}
	return types
}

// WaitSent blocks until at least n messages were sent or timeout passes.
func (c *Conn) WaitSent(n int, timeout time.Duration) ([][]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		sent := c.Sent()
		if len(sent) >= n {
			return sent, nil
		}
		if time.Now().After(deadline) {
			return sent, errors.New("timed out waiting for outbound messages")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Closed reports whether the connection was released.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// CloseCount returns how many times the control channel writer was closed.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// Local returns the stream handed to Open.
func (c *Conn) Local() media.Stream { return c.local }
