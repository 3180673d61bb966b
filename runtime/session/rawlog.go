package session

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultMaxRawEvents bounds the diagnostic log of inbound messages.
const DefaultMaxRawEvents = 1000

// RawEvent is one inbound control message exactly as received. Type is
// empty when the message could not be decoded.
type RawEvent struct {
	At   time.Time       `json:"at"`
	Type string          `json:"type,omitempty"`
	Data json.RawMessage `json:"data"`
}

// rawLog keeps the most recent max events, oldest first.
type rawLog struct {
	mu     sync.Mutex
	limit  int
	events []RawEvent
}

func newRawLog(limit int) *rawLog {
	if limit <= 0 {
		limit = DefaultMaxRawEvents
	}
	return &rawLog{limit: limit}
}

func (l *rawLog) append(ev RawEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == l.limit {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.limit-1]
	}
	l.events = append(l.events, ev)
}

// setType labels the most recent event once it has been decoded.
func (l *rawLog) setType(typ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.events); n > 0 {
		l.events[n-1].Type = typ
	}
}

func (l *rawLog) all() []RawEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RawEvent(nil), l.events...)
}

func (l *rawLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
