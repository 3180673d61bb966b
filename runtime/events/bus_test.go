package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waitForWG(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestEventBusPublishesToSpecificAndGlobalListeners(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []EventType
	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(EventSessionStarted, func(e *Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
		wg.Done()
	})
	bus.SubscribeAll(func(e *Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(&Event{Type: EventSessionStarted})

	if !waitForWG(&wg, time.Second) {
		t.Fatal("timed out waiting for listeners")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(received))
	}
}

func TestEventBusRecoversFromPanic(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(EventServerError, func(*Event) { panic("listener panic") })
	bus.Subscribe(EventServerError, func(*Event) { wg.Done() })

	bus.Publish(&Event{Type: EventServerError})

	if !waitForWG(&wg, time.Second) {
		t.Fatal("listener after panic did not fire")
	}
}

func TestEventBusPreservesOrder(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	var got []int
	bus.SubscribeAll(func(e *Event) {
		got = append(got, e.Data.(WatchdogCountdownData).SecondsRemaining)
	})
	for i := 15; i >= 0; i-- {
		bus.Publish(&Event{Type: EventWatchdogCountdown, Data: WatchdogCountdownData{SecondsRemaining: i}})
	}
	bus.Close()

	if len(got) != 16 {
		t.Fatalf("expected 16 events, got %d", len(got))
	}
	for i, v := range got {
		if v != 15-i {
			t.Fatalf("event %d out of order: %v", i, got)
		}
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	var specific, global int
	unsubSpecific := bus.Subscribe(EventTurnFinalized, func(*Event) { specific++ })
	unsubGlobal := bus.SubscribeAll(func(*Event) { global++ })

	bus.Publish(&Event{Type: EventTurnFinalized})
	// Unsubscribing takes effect for events delivered afterwards; publish a
	// barrier so the first event is known to have been delivered.
	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(EventSessionEnded, func(*Event) { wg.Done() })
	bus.Publish(&Event{Type: EventSessionEnded})
	if !waitForWG(&wg, time.Second) {
		t.Fatal("barrier not delivered")
	}

	unsubSpecific()
	unsubGlobal()
	bus.Publish(&Event{Type: EventTurnFinalized})
	bus.Close()

	if specific != 1 {
		t.Errorf("expected 1 specific delivery, got %d", specific)
	}
	if global != 2 {
		t.Errorf("expected 2 global deliveries, got %d", global)
	}
}

func TestEventBusPublishAfterClose(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	called := false
	bus.SubscribeAll(func(*Event) { called = true })
	bus.Close()
	bus.Close()
	bus.Publish(&Event{Type: EventSessionStarted})

	if called {
		t.Fatal("listener must not run after Close")
	}
}

func TestEmitterPublishesSharedContext(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	emitter := NewEmitter(bus, "session-1")

	var events []*Event
	bus.SubscribeAll(func(e *Event) { events = append(events, e) })

	emitter.SessionStarting("webrtc")
	emitter.SessionStarted("webrtc", 50*time.Millisecond)
	emitter.TurnFinalized("t1", "user", "hello")
	emitter.ToolCompleted("showHints", "call-1", time.Millisecond)
	emitter.ToolFailed("missing", "call-2", 0, true, errors.New("unknown tool"))
	emitter.WatchdogCountdown(3)
	emitter.ProtocolParseFailed("{", errors.New("bad"))
	emitter.InboundMessage("session.created")
	emitter.ServerError("rate_limit", "slow down")
	emitter.ResponseUsage(10, 20, 30)
	emitter.SessionStartFailed("credential", errors.New("denied"))
	emitter.SessionEnded("user", time.Minute, 4)
	bus.Close()

	want := []EventType{
		EventSessionStarting, EventSessionStarted, EventTurnFinalized, EventToolCompleted,
		EventToolFailed, EventWatchdogCountdown, EventProtocolParseFailed, EventInboundMessage,
		EventServerError, EventResponseUsage, EventSessionStartFailed, EventSessionEnded,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.SessionID != "session-1" {
			t.Errorf("event %d: unexpected session id %q", i, e.SessionID)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event %d: missing timestamp", i)
		}
	}

	ended, ok := events[len(events)-1].Data.(SessionEndedData)
	if !ok || ended.Reason != "user" || ended.Turns != 4 {
		t.Fatalf("unexpected ended data: %+v", events[len(events)-1].Data)
	}
}

func TestNilEmitterIsSafe(t *testing.T) {
	t.Parallel()

	var e *Emitter
	e.SessionStarted("webrtc", 0)
	if e.SessionID() != "" {
		t.Fatal("expected empty session id")
	}
	NewEmitter(nil, "s").SessionEnded("user", 0, 0)
}
