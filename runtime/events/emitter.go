package events

import "time"

// Emitter provides helpers for publishing session events with shared metadata.
// A nil Emitter, or one without a bus, drops every event.
type Emitter struct {
	bus       *EventBus
	sessionID string
	now       func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, now: time.Now}
}

// SessionID returns the session identifier stamped on every event.
func (e *Emitter) SessionID() string {
	if e == nil {
		return ""
	}
	return e.sessionID
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: e.now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// SessionStarting emits the session.starting event.
func (e *Emitter) SessionStarting(transport string) {
	e.emit(EventSessionStarting, SessionStartingData{Transport: transport})
}

// SessionStarted emits the session.started event.
func (e *Emitter) SessionStarted(transport string, setup time.Duration) {
	e.emit(EventSessionStarted, SessionStartedData{Transport: transport, SetupDuration: setup})
}

// SessionStartFailed emits the session.start_failed event.
func (e *Emitter) SessionStartFailed(stage string, err error) {
	e.emit(EventSessionStartFailed, SessionStartFailedData{Stage: stage, Error: err})
}

// SessionEnded emits the session.ended event.
func (e *Emitter) SessionEnded(reason string, duration time.Duration, turns int) {
	e.emit(EventSessionEnded, SessionEndedData{Reason: reason, Duration: duration, Turns: turns})
}

// TurnFinalized emits the turn.finalized event.
func (e *Emitter) TurnFinalized(turnID, role, text string) {
	e.emit(EventTurnFinalized, TurnFinalizedData{TurnID: turnID, Role: role, Text: text})
}

// ToolCompleted emits the tool.completed event.
func (e *Emitter) ToolCompleted(name, callID string, duration time.Duration) {
	e.emit(EventToolCompleted, ToolCompletedData{ToolName: name, CallID: callID, Duration: duration})
}

// ToolFailed emits the tool.failed event.
func (e *Emitter) ToolFailed(name, callID string, duration time.Duration, unknown bool, err error) {
	e.emit(EventToolFailed, ToolFailedData{
		ToolName: name,
		CallID:   callID,
		Duration: duration,
		Unknown:  unknown,
		Error:    err,
	})
}

// WatchdogCountdown emits the watchdog.countdown event.
func (e *Emitter) WatchdogCountdown(secondsRemaining int) {
	e.emit(EventWatchdogCountdown, WatchdogCountdownData{SecondsRemaining: secondsRemaining})
}

// ProtocolParseFailed emits the protocol.parse_failed event.
func (e *Emitter) ProtocolParseFailed(snippet string, err error) {
	e.emit(EventProtocolParseFailed, ProtocolParseFailedData{Snippet: snippet, Error: err})
}

// InboundMessage emits the protocol.inbound event.
func (e *Emitter) InboundMessage(messageType string) {
	e.emit(EventInboundMessage, InboundMessageData{MessageType: messageType})
}

// ServerError emits the server.error event.
func (e *Emitter) ServerError(code, message string) {
	e.emit(EventServerError, ServerErrorData{Code: code, Message: message})
}

// ResponseUsage emits the response.usage event.
func (e *Emitter) ResponseUsage(input, output, total int) {
	e.emit(EventResponseUsage, ResponseUsageData{InputTokens: input, OutputTokens: output, TotalTokens: total})
}
