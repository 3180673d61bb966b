package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys extracted by ContextHandler and added to every record.
const (
	// ContextKeySessionID identifies one Start..Stop lifetime of a session controller.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyTurnID identifies the transcript turn being mutated.
	ContextKeyTurnID contextKey = "turn_id"

	// ContextKeyEventType is the control-channel "type" discriminator.
	ContextKeyEventType contextKey = "event_type"

	// ContextKeyCallID correlates a tool invocation with its result.
	ContextKeyCallID contextKey = "call_id"

	// ContextKeyTransport names the transport in use ("webrtc", "websocket").
	ContextKeyTransport contextKey = "transport"

	// ContextKeyStage identifies the startup stage (media, credential, signaling, priming).
	ContextKeyStage contextKey = "stage"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyTurnID,
	ContextKeyEventType,
	ContextKeyCallID,
	ContextKeyTransport,
	ContextKeyStage,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithTurnID returns a new context with the turn ID set.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, ContextKeyTurnID, turnID)
}

// WithEventType returns a new context with the control event type set.
func WithEventType(ctx context.Context, eventType string) context.Context {
	return context.WithValue(ctx, ContextKeyEventType, eventType)
}

// WithCallID returns a new context with the tool call ID set.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, ContextKeyCallID, callID)
}

// WithTransport returns a new context with the transport kind set.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, ContextKeyTransport, transport)
}

// WithStage returns a new context with the startup stage set.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ContextKeyStage, stage)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID string
	TurnID    string
	EventType string
	CallID    string
	Transport string
	Stage     string
}

// WithLoggingContext sets every non-empty field of fields on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	set := func(key contextKey, v string) {
		if v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	set(ContextKeySessionID, fields.SessionID)
	set(ContextKeyTurnID, fields.TurnID)
	set(ContextKeyEventType, fields.EventType)
	set(ContextKeyCallID, fields.CallID)
	set(ContextKeyTransport, fields.Transport)
	set(ContextKeyStage, fields.Stage)
	return ctx
}

// ExtractLoggingFields reads all logging fields from ctx.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	get := func(key contextKey) string {
		s, _ := ctx.Value(key).(string)
		return s
	}
	return LoggingFields{
		SessionID: get(ContextKeySessionID),
		TurnID:    get(ContextKeyTurnID),
		EventType: get(ContextKeyEventType),
		CallID:    get(ContextKeyCallID),
		Transport: get(ContextKeyTransport),
		Stage:     get(ContextKeyStage),
	}
}
