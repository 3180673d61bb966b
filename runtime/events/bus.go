// Package events provides a lightweight pub/sub event bus for session observability.
package events

import (
	"sync"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const queueSize = 1024

// Listener is a function that handles events.
type Listener func(*Event)

type subscription struct {
	id       uint64
	listener Listener
}

// EventBus manages event distribution to listeners. Events are delivered
// on a single goroutine in publish order, so listeners never run
// concurrently with each other.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]subscription
	globalListeners []subscription
	nextID          uint64

	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewEventBus creates a new event bus and starts its delivery goroutine.
func NewEventBus() *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]subscription),
		queue:     make(chan *Event, queueSize),
		done:      make(chan struct{}),
	}
	go eb.run()
	return eb
}

// Subscribe registers a listener for a specific event type. The returned
// function removes it.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], subscription{id: id, listener: listener})
	return func() { eb.unsubscribe(eventType, id) }
}

// SubscribeAll registers a listener for all event types. The returned
// function removes it.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, subscription{id: id, listener: listener})
	return func() { eb.unsubscribe("", id) }
}

func (eb *EventBus) unsubscribe(eventType EventType, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	remove := func(subs []subscription) []subscription {
		out := subs[:0:0]
		for _, s := range subs {
			if s.id != id {
				out = append(out, s)
			}
		}
		return out
	}
	if eventType == "" {
		eb.globalListeners = remove(eb.globalListeners)
		return
	}
	eb.listeners[eventType] = remove(eb.listeners[eventType])
}

// Publish queues an event for delivery. It never blocks: when the queue is
// full the event is dropped and a warning is logged. Events published after
// Close are discarded.
func (eb *EventBus) Publish(event *Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	select {
	case eb.queue <- event:
	default:
		logger.Warn("event bus queue full, dropping event", "type", event.Type)
	}
}

// Close stops accepting events, delivers everything already queued and
// waits for delivery to finish.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		eb.mu.Lock()
		eb.closed = true
		close(eb.queue)
		eb.mu.Unlock()
	})
	<-eb.done
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]subscription)
	eb.globalListeners = nil
}

func (eb *EventBus) run() {
	defer close(eb.done)
	for event := range eb.queue {
		eb.mu.RLock()
		specific := append([]subscription(nil), eb.listeners[event.Type]...)
		global := append([]subscription(nil), eb.globalListeners...)
		eb.mu.RUnlock()

		for _, s := range specific {
			safeInvoke(s.listener, event)
		}
		for _, s := range global {
			safeInvoke(s.listener, event)
		}
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked", "type", event.Type, "panic", r)
		}
	}()
	listener(event)
}
