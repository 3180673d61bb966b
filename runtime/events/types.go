package events

import (
	"time"
)

// EventType identifies the type of event emitted by a session.
type EventType string

const (
	// EventSessionStarting marks the beginning of Start.
	EventSessionStarting EventType = "session.starting"
	// EventSessionStarted marks the control channel opening.
	EventSessionStarted EventType = "session.started"
	// EventSessionStartFailed marks a Start that was rolled back.
	EventSessionStartFailed EventType = "session.start_failed"
	// EventSessionEnded marks an active session returning to idle.
	EventSessionEnded EventType = "session.ended"

	// EventTurnFinalized marks a transcript turn becoming final.
	EventTurnFinalized EventType = "turn.finalized"

	// EventToolCompleted marks a successful tool invocation.
	EventToolCompleted EventType = "tool.completed"
	// EventToolFailed marks a tool invocation that failed or was unknown.
	EventToolFailed EventType = "tool.failed"

	// EventWatchdogCountdown marks a change of the visible countdown.
	EventWatchdogCountdown EventType = "watchdog.countdown"

	// EventProtocolParseFailed marks an inbound message that could not be decoded.
	EventProtocolParseFailed EventType = "protocol.parse_failed"
	// EventInboundMessage marks any inbound control message.
	EventInboundMessage EventType = "protocol.inbound"
	// EventServerError marks an error reported by the endpoint.
	EventServerError EventType = "server.error"
	// EventResponseUsage marks token usage reported for a response.
	EventResponseUsage EventType = "response.usage"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a session event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionStartingData contains data for session starting events.
type SessionStartingData struct {
	baseEventData
	Transport string
}

// SessionStartedData contains data for session started events.
type SessionStartedData struct {
	baseEventData
	Transport string
	// SetupDuration is the time from Start until the control channel opened.
	SetupDuration time.Duration
}

// SessionStartFailedData contains data for failed starts.
type SessionStartFailedData struct {
	baseEventData
	Stage string
	Error error
}

// SessionEndedData contains data for session ended events.
type SessionEndedData struct {
	baseEventData
	Reason   string
	Duration time.Duration
	Turns    int
}

// TurnFinalizedData contains data for finalized turns.
type TurnFinalizedData struct {
	baseEventData
	TurnID string
	Role   string
	Text   string
}

// ToolCompletedData contains data for successful tool calls.
type ToolCompletedData struct {
	baseEventData
	ToolName string
	CallID   string
	Duration time.Duration
}

// ToolFailedData contains data for failed tool calls.
type ToolFailedData struct {
	baseEventData
	ToolName string
	CallID   string
	Duration time.Duration
	Unknown  bool
	Error    error
}

// WatchdogCountdownData contains the visible seconds remaining.
type WatchdogCountdownData struct {
	baseEventData
	SecondsRemaining int
}

// ProtocolParseFailedData contains data for undecodable messages.
type ProtocolParseFailedData struct {
	baseEventData
	Snippet string
	Error   error
}

// InboundMessageData contains the wire type of an inbound message.
type InboundMessageData struct {
	baseEventData
	MessageType string
}

// ServerErrorData contains data for endpoint errors.
type ServerErrorData struct {
	baseEventData
	Code    string
	Message string
}

// ResponseUsageData contains token usage for one response.
type ResponseUsageData struct {
	baseEventData
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
