// Package transcript holds the ordered log of conversation turns for one
// session. Turns stay mutable until they are marked final.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role attributes a turn to one side of the conversation.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks where a user turn is in the speech pipeline. Assistant
// turns leave it empty and rely on IsFinal.
type Status string

// User turn statuses.
const (
	StatusSpeaking   Status = "speaking"
	StatusProcessing Status = "processing"
	StatusFinal      Status = "final"
)

// Turn is one contiguous utterance.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsFinal   bool      `json:"isFinal"`
	Status    Status    `json:"status,omitempty"`
}

// NewTurn creates an open turn with a fresh ID.
func NewTurn(role Role, text string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: now,
	}
}

// Transcript is an ordered, append-mostly sequence of turns. It is safe for
// concurrent use; the session event loop is the only writer in practice and
// observers read copies.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
	index map[string]int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// AppendOrUpdate inserts turn, or replaces the stored turn with the same ID.
// Replacing a turn that is already final is refused and reports false.
func (t *Transcript) AppendOrUpdate(turn Turn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[turn.ID]; ok {
		if t.turns[i].IsFinal {
			return false
		}
		turn.Timestamp = t.turns[i].Timestamp
		t.turns[i] = turn
		return true
	}

	t.index[turn.ID] = len(t.turns)
	t.turns = append(t.turns, turn)
	return true
}

// Get returns the turn with the given ID.
func (t *Transcript) Get(id string) (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return Turn{}, false
	}
	return t.turns[i], true
}

// Last returns the tail turn.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// All returns a copy of the turns in creation order.
func (t *Transcript) All() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Reset drops every turn.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
	t.index = make(map[string]int)
}

// Clone returns an independent copy.
func (t *Transcript) Clone() *Transcript {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Transcript{
		turns: make([]Turn, len(t.turns)),
		index: make(map[string]int, len(t.index)),
	}
	copy(c.turns, t.turns)
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}
