package watchdog

import (
	"sync"
	"time"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// DefaultTick is how often an armed watchdog consults its policy.
const DefaultTick = time.Second

// Watchdog runs a Policy on a fixed tick while armed. It is dormant until
// Arm is called, and Cancel returns it to dormant. Terminate fires at most
// once per Watchdog.
type Watchdog struct {
	mu     sync.Mutex
	clock  Clock
	policy Policy
	tick   time.Duration

	onCountdown func(secondsRemaining int)
	onTerminate func()

	armed        bool
	terminated   bool
	generation   uint64
	lastActivity time.Time
	countdown    int
	timer        Timer

	// notifyMu orders countdown callbacks; published is the last value
	// delivered.
	notifyMu  sync.Mutex
	published int
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(w *Watchdog) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithTick sets the policy evaluation interval.
func WithTick(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.tick = d
		}
	}
}

// OnCountdown is called whenever the visible countdown value changes,
// including the reset to zero on Cancel or re-Arm. Calls are serialized and
// always carry the current value, so the last call matches Countdown. f must
// not call Arm or Cancel.
func OnCountdown(f func(secondsRemaining int)) Option {
	return func(w *Watchdog) { w.onCountdown = f }
}

// OnTerminate is called once when the policy decides to terminate.
func OnTerminate(f func()) Option {
	return func(w *Watchdog) { w.onTerminate = f }
}

// New creates a dormant watchdog.
func New(policy Policy, opts ...Option) *Watchdog {
	w := &Watchdog{
		clock:  SystemClock{},
		policy: policy,
		tick:   DefaultTick,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Arm records activity now and (re)starts the policy tick. Any countdown in
// progress is discarded.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return
	}
	w.stopTimerLocked()
	w.armed = true
	w.lastActivity = w.clock.Now()
	w.countdown = 0
	w.scheduleLocked()
	w.mu.Unlock()

	logger.Debug("watchdog armed")
	w.publishCountdown()
}

// Cancel returns the watchdog to dormant. It is a no-op when already
// dormant.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	w.stopTimerLocked()
	w.armed = false
	w.countdown = 0
	w.mu.Unlock()

	logger.Debug("watchdog cancelled")
	w.publishCountdown()
}

// Armed reports whether the watchdog is currently running.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Countdown returns the seconds remaining, or zero when no countdown is
// visible.
func (w *Watchdog) Countdown() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countdown
}

func (w *Watchdog) stopTimerLocked() {
	w.generation++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watchdog) scheduleLocked() {
	gen := w.generation
	w.timer = w.clock.AfterFunc(w.tick, func() { w.evaluate(gen) })
}

func (w *Watchdog) evaluate(gen uint64) {
	w.mu.Lock()
	if !w.armed || gen != w.generation {
		w.mu.Unlock()
		return
	}

	d := w.policy(w.lastActivity, w.clock.Now())
	switch d.Action {
	case Continue:
		w.scheduleLocked()
		w.mu.Unlock()

	case EnterCountdown:
		w.countdown = d.SecondsRemaining
		w.scheduleLocked()
		w.mu.Unlock()
		w.publishCountdown()

	case Terminate:
		w.armed = false
		w.terminated = true
		w.countdown = 0
		w.timer = nil
		w.generation++
		w.mu.Unlock()

		logger.Info("watchdog terminating idle session")
		w.publishCountdown()
		if w.onTerminate != nil {
			w.onTerminate()
		}

	default:
		w.mu.Unlock()
	}
}

// publishCountdown delivers the current countdown if it differs from the
// last delivered value. A stale caller finds the value already superseded
// and delivers nothing.
func (w *Watchdog) publishCountdown() {
	if w.onCountdown == nil {
		return
	}
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	n := w.countdown
	w.mu.Unlock()
	if n == w.published {
		return
	}
	w.published = n
	w.onCountdown(n)
}
