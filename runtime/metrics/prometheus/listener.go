package prometheus

import (
	"github.com/AltairaLabs/VoiceKit/runtime/events"
)

// Status and reason constants for metric labels.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusUnknown  = "unknown"
	reasonWatchdog = "watchdog"
)

// MetricsListener records session events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
// This method is designed to be used with EventBus.SubscribeAll.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch data := event.Data.(type) {
	case events.SessionStartedData:
		RecordSessionStart(data.SetupDuration.Seconds())
	case events.SessionStartFailedData:
		RecordStartupFailure(data.Stage)
	case events.SessionEndedData:
		RecordSessionEnd(data.Reason, data.Duration.Seconds())
	case events.InboundMessageData:
		RecordInboundEvent(data.MessageType)
	case events.ProtocolParseFailedData:
		RecordProtocolError()
	case events.ServerErrorData:
		RecordServerError(data.Code)
	case events.ToolCompletedData:
		RecordToolCall(data.ToolName, statusSuccess, data.Duration.Seconds())
	case events.ToolFailedData:
		status := statusError
		if data.Unknown {
			status = statusUnknown
		}
		RecordToolCall(data.ToolName, status, data.Duration.Seconds())
	case events.TurnFinalizedData:
		RecordTurn(data.Role)
	case events.ResponseUsageData:
		RecordTokens(data.InputTokens, data.OutputTokens)
	default:
		// Ignore events that don't have metrics
	}
}
