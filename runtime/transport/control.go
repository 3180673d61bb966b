package transport

import (
	"encoding/json"
	"fmt"
	"sync"
)

const messageBuffer = 256

// Channel is the shared bookkeeping behind every ControlChannel: open and
// closed signals and the inbound queue. Implementations provide the write
// path.
type Channel struct {
	messages chan []byte
	opened   chan struct{}
	closed   chan struct{}

	mu         sync.Mutex
	openOnce   sync.Once
	closeOnce  sync.Once
	isClosed   bool
	write      func([]byte) error
	closeWrite func() error
}

// NewChannel creates a channel whose Send marshals to JSON and hands the
// bytes to write. closeWrite, when non-nil, runs once on Close.
func NewChannel(write func([]byte) error, closeWrite func() error) *Channel {
	return &Channel{
		messages:   make(chan []byte, messageBuffer),
		opened:     make(chan struct{}),
		closed:     make(chan struct{}),
		write:      write,
		closeWrite: closeWrite,
	}
}

// MarkOpen signals that Send may be used.
func (c *Channel) MarkOpen() {
	c.openOnce.Do(func() { close(c.opened) })
}

// Deliver queues an inbound payload. It blocks while the queue is full and
// drops the payload once the channel is closed.
func (c *Channel) Deliver(data []byte) {
	c.mu.Lock()
	closed := c.isClosed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.messages <- data:
	case <-c.closed:
	}
}

// Send marshals v and writes it.
func (c *Channel) Send(v any) error {
	select {
	case <-c.opened:
	default:
		return ErrNotOpen
	}
	select {
	case <-c.closed:
		return ErrNotOpen
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.write(data)
}

// Messages returns the inbound queue.
func (c *Channel) Messages() <-chan []byte { return c.messages }

// Opened is closed once the channel is usable.
func (c *Channel) Opened() <-chan struct{} { return c.opened }

// Closed is closed once the channel is shut down.
func (c *Channel) Closed() <-chan struct{} { return c.closed }

// Close shuts the channel down. Only the first call has any effect.
func (c *Channel) Close() error {
	first := false
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.isClosed = true
		c.mu.Unlock()
		close(c.closed)
		first = true
	})
	if first && c.closeWrite != nil {
		return c.closeWrite()
	}
	return nil
}
