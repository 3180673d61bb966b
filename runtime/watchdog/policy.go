// Package watchdog ends idle sessions. A Watchdog is one cancellable
// scheduled task that periodically asks a Policy what to do given the time
// of the last qualifying activity.
package watchdog

import (
	"errors"
	"time"
)

// ErrInactivity is the reason attached to sessions ended by the watchdog.
var ErrInactivity = errors.New("session ended after inactivity")

// Action is what a Policy wants the watchdog to do.
type Action int

// Actions.
const (
	Continue Action = iota
	EnterCountdown
	Terminate
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case EnterCountdown:
		return "countdown"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Decision is a Policy verdict. SecondsRemaining is only meaningful for
// EnterCountdown.
type Decision struct {
	Action           Action
	SecondsRemaining int
}

// Policy maps the last activity time and the current time to a Decision.
// Policies must be pure.
type Policy func(lastActivity, now time.Time) Decision

// TwoPhase stays silent for the silent interval, then counts steps down
// one per step interval and terminates when the count reaches zero. With
// steps == 0 it terminates as soon as the silent interval elapses.
func TwoPhase(silent time.Duration, steps int, step time.Duration) Policy {
	if step <= 0 {
		step = time.Second
	}
	return func(lastActivity, now time.Time) Decision {
		elapsed := now.Sub(lastActivity)
		if elapsed < silent {
			return Decision{Action: Continue}
		}
		remaining := steps - int((elapsed-silent)/step)
		if remaining > 0 {
			return Decision{Action: EnterCountdown, SecondsRemaining: remaining}
		}
		return Decision{Action: Terminate}
	}
}
