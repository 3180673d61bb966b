package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/VoiceKit/runtime/events"
)

// Span names.
const (
	SpanSession = "voicekit.session"
	SpanTool    = "voicekit.tool"
)

// sessionState tracks the root span for a session.
type sessionState struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// OTelEventListener converts session events into OTel spans. Each session
// gets one root span from session.starting until session.ended or
// session.start_failed; tool calls become child spans and the remaining
// events are recorded as span events on the root.
type OTelEventListener struct {
	tracer trace.Tracer
	parent context.Context //nolint:containedctx // parent for root spans

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewOTelEventListener creates a listener that creates OTel spans from session events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		parent:   context.Background(),
		sessions: make(map[string]*sessionState),
	}
}

// WithParent parents every root span under the span context in ctx.
func (l *OTelEventListener) WithParent(ctx context.Context) *OTelEventListener {
	l.parent = ctx
	return l
}

// OnEvent handles a single session event. It can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only handling span-producing events
	switch data := evt.Data.(type) {
	case events.SessionStartingData:
		l.startSession(evt, data)
	case events.SessionStartedData:
		l.addEvent(evt, "session.started", attribute.Int64("setup.ms", data.SetupDuration.Milliseconds()))
	case events.SessionStartFailedData:
		l.endSession(evt.SessionID, data.Error, attribute.String("startup.stage", data.Stage))
	case events.SessionEndedData:
		l.endSession(evt.SessionID, nil,
			attribute.String("session.end_reason", data.Reason),
			attribute.Int("session.turns", data.Turns),
		)
	case events.ToolCompletedData:
		l.toolSpan(evt, data.ToolName, data.CallID, data.Duration, nil)
	case events.ToolFailedData:
		l.toolSpan(evt, data.ToolName, data.CallID, data.Duration, data.Error)
	case events.TurnFinalizedData:
		l.addEvent(evt, "turn.finalized",
			attribute.String("turn.id", data.TurnID),
			attribute.String("turn.role", data.Role),
		)
	case events.WatchdogCountdownData:
		l.addEvent(evt, "watchdog.countdown", attribute.Int("countdown.remaining", data.SecondsRemaining))
	case events.ServerErrorData:
		l.addEvent(evt, "server.error",
			attribute.String("error.code", data.Code),
			attribute.String("error.message", data.Message),
		)
	case events.ProtocolParseFailedData:
		l.addEvent(evt, "protocol.parse_failed", attribute.String("message.snippet", data.Snippet))
	case events.ResponseUsageData:
		l.addEvent(evt, "response.usage",
			attribute.Int("tokens.input", data.InputTokens),
			attribute.Int("tokens.output", data.OutputTokens),
		)
	}
}

// Open returns the number of sessions whose root span is still open.
func (l *OTelEventListener) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *OTelEventListener) startSession(evt *events.Event, data events.SessionStartingData) {
	ctx, span := l.tracer.Start(l.parent, SpanSession,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("session.id", evt.SessionID),
			attribute.String("session.transport", data.Transport),
		),
	)
	l.mu.Lock()
	l.sessions[evt.SessionID] = &sessionState{span: span, ctx: ctx}
	l.mu.Unlock()
}

func (l *OTelEventListener) endSession(sessionID string, err error, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	if ok {
		delete(l.sessions, sessionID)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.SetAttributes(attrs...)
	if err != nil {
		ss.span.RecordError(err)
		ss.span.SetStatus(codes.Error, err.Error())
	} else {
		ss.span.SetStatus(codes.Ok, "")
	}
	ss.span.End()
}

func (l *OTelEventListener) session(sessionID string) *sessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[sessionID]
}

func (l *OTelEventListener) addEvent(evt *events.Event, name string, attrs ...attribute.KeyValue) {
	ss := l.session(evt.SessionID)
	if ss == nil {
		return
	}
	ss.span.AddEvent(name, trace.WithTimestamp(evt.Timestamp), trace.WithAttributes(attrs...))
}

// toolSpan records a finished tool call as a child span ending at the event
// time.
func (l *OTelEventListener) toolSpan(evt *events.Event, name, callID string, d time.Duration, err error) {
	parent := l.parent
	if ss := l.session(evt.SessionID); ss != nil {
		parent = ss.ctx
	}
	start := evt.Timestamp.Add(-d)
	_, span := l.tracer.Start(parent, SpanTool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.call_id", callID),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(evt.Timestamp))
}
