package session

import (
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/router"
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/watchdog"
)

// loopEvent is anything the session goroutine processes.
type loopEvent interface{ isLoopEvent() }

type inboundMessage struct{ raw []byte }

type textSubmit struct {
	text  string
	reply chan<- error
}

type toolDone struct {
	call    tools.Call
	result  tools.Result
	err     error
	elapsed time.Duration
}

type inactivityExpired struct{}

type channelClosed struct{}

type stopRequest struct{}

func (inboundMessage) isLoopEvent()    {}
func (textSubmit) isLoopEvent()        {}
func (toolDone) isLoopEvent()          {}
func (inactivityExpired) isLoopEvent() {}
func (channelClosed) isLoopEvent()     {}
func (stopRequest) isLoopEvent()       {}

// post queues ev for rs. It reports false once the session has ended.
func (c *Controller) post(rs *runState, ev loopEvent) bool {
	select {
	case <-rs.done:
		return false
	default:
	}
	select {
	case rs.queue <- ev:
		return true
	case <-rs.done:
		return false
	}
}

// pump forwards inbound control messages to the queue in arrival order and
// reports the channel closing once everything received has been queued.
func (c *Controller) pump(rs *runState) {
	control := rs.conn.Control
	for {
		select {
		case <-rs.ctx.Done():
			return
		case raw := <-control.Messages():
			if !c.post(rs, inboundMessage{raw: raw}) {
				return
			}
		case <-control.Closed():
			for {
				select {
				case raw := <-control.Messages():
					if !c.post(rs, inboundMessage{raw: raw}) {
						return
					}
				default:
					c.post(rs, channelClosed{})
					return
				}
			}
		}
	}
}

// run is the session goroutine. It is the only place session state
// changes after Start returns.
func (c *Controller) run(rs *runState) {
	defer close(rs.done)
	for ev := range rs.queue {
		switch e := ev.(type) {
		case inboundMessage:
			c.handleInbound(rs, e.raw)
		case textSubmit:
			e.reply <- c.submitText(rs, e.text)
		case toolDone:
			c.finishTool(rs, e)
		case inactivityExpired:
			c.end(rs, ReasonWatchdog, watchdog.ErrInactivity)
			return
		case channelClosed:
			logger.WarnContext(rs.ctx, "Control channel closed by remote")
			c.end(rs, ReasonConnection, errChannelClosed)
			return
		case stopRequest:
			c.end(rs, ReasonUser, nil)
			return
		}
	}
}

func (c *Controller) handleInbound(rs *runState, raw []byte) {
	now := c.clock.Now()
	c.raw.append(RawEvent{At: now, Data: json.RawMessage(raw)})

	ev, err := router.Decode(raw, router.Meta{At: now, NewID: c.cfg.NewID()})
	if err != nil {
		var perr *router.ProtocolParseError
		snippet := ""
		if errors.As(err, &perr) {
			snippet = perr.Snippet
		}
		logger.WarnContext(rs.ctx, "Dropping malformed control message", "error", err, "snippet", snippet)
		rs.emitter.ProtocolParseFailed(snippet, err)
		return
	}

	typ := ev.Info().Type
	c.raw.setType(typ)
	logger.InboundEvent(logger.WithEventType(rs.ctx, typ), typ, len(raw))
	rs.emitter.InboundMessage(typ)
	if _, ok := ev.(router.Unrecognized); ok {
		logger.DebugContext(rs.ctx, "Unrecognized control message", "event_type", typ)
	}
	c.apply(rs, ev)
}

// apply reduces ev into the session state and carries out the effects.
func (c *Controller) apply(rs *runState, ev router.Event) {
	next, effects := router.Reduce(rs.state, ev)
	rs.state = next
	c.speaking.Store(next.Speaking)

	for _, eff := range effects {
		switch e := eff.(type) {
		case router.UpsertTurn:
			if c.transcript.AppendOrUpdate(e.Turn) && e.Turn.IsFinal {
				rs.emitter.TurnFinalized(e.Turn.ID, string(e.Turn.Role), e.Turn.Text)
			}
		case router.ArmWatchdog:
			if rs.watchdog != nil {
				rs.watchdog.Arm()
			}
		case router.CancelWatchdog:
			if rs.watchdog != nil {
				rs.watchdog.Cancel()
			}
		case router.InvokeTool:
			c.dispatch(rs, e.Call)
		case router.ReportServerError:
			logger.ErrorContext(rs.ctx, "Realtime endpoint reported an error", "code", e.Code, "message", e.Message)
			rs.emitter.ServerError(e.Code, e.Message)
		case router.RecordUsage:
			rs.emitter.ResponseUsage(e.Usage.InputTokens, e.Usage.OutputTokens, e.Usage.TotalTokens)
		}
	}
	c.publish()
}

// dispatch hands call to the registry. Completion comes back through the
// queue so results are applied in order with everything else.
func (c *Controller) dispatch(rs *runState, call tools.Call) {
	ctx := logger.WithCallID(rs.ctx, call.CallID)
	logger.ToolCall(ctx, call.Name, call.CallID)
	started := c.clock.Now()

	err := c.cfg.Tools.Dispatch(rs.ctx, call, func(res tools.Result, err error) {
		c.post(rs, toolDone{call: call, result: res, err: err, elapsed: c.clock.Now().Sub(started)})
	})
	if err != nil {
		logger.ToolError(ctx, call.Name, call.CallID, err)
		rs.emitter.ToolFailed(call.Name, call.CallID, 0, errors.Is(err, tools.ErrUnknownTool), err)
	}
}

// finishTool answers a completed call with its output followed by a
// response trigger. Failed calls get no reply.
func (c *Controller) finishTool(rs *runState, d toolDone) {
	ctx := logger.WithCallID(rs.ctx, d.call.CallID)
	if d.err != nil {
		logger.ToolError(ctx, d.call.Name, d.call.CallID, d.err)
		rs.emitter.ToolFailed(d.call.Name, d.call.CallID, d.elapsed, false, d.err)
		return
	}

	item, err := realtime.NewFunctionCallOutput(d.result.CallID, d.result.Output)
	if err != nil {
		logger.ToolError(ctx, d.call.Name, d.call.CallID, err)
		rs.emitter.ToolFailed(d.call.Name, d.call.CallID, d.elapsed, false, err)
		return
	}
	if err := c.send(rs, item, realtime.NewResponseCreate()); err != nil {
		logger.WarnContext(ctx, "Failed to deliver tool result", "tool", d.call.Name, "error", err)
		rs.emitter.ToolFailed(d.call.Name, d.call.CallID, d.elapsed, false, err)
		return
	}
	logger.DebugContext(ctx, "Tool result delivered", "tool", d.call.Name, "elapsed", d.elapsed)
	rs.emitter.ToolCompleted(d.call.Name, d.call.CallID, d.elapsed)
}

func (c *Controller) submitText(rs *runState, text string) error {
	c.apply(rs, router.UserText{
		Meta: router.Meta{Type: "user.text", At: c.clock.Now(), NewID: c.cfg.NewID()},
		Text: text,
	})
	return c.send(rs, realtime.NewMessage("user", text), realtime.NewResponseCreate())
}

func typeName(v any) string {
	if t := realtime.TypeOf(v); t != "" {
		return t
	}
	return "unknown"
}

func telemetrySessionAttrs(id, transportName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.id", id),
		attribute.String("session.transport", transportName),
	}
}
