package router

import (
	"encoding/json"

	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

// Decode parses one control message. meta.Type is filled from the message.
// Malformed input returns *ProtocolParseError; unknown types decode to
// Unrecognized without error.
func Decode(raw []byte, meta Meta) (Event, error) {
	parsed, err := realtime.ParseServerEvent(raw)
	if err != nil {
		return nil, newParseError(raw, err)
	}
	meta.Type = realtime.TypeOf(parsed)

	switch ev := parsed.(type) {
	case *realtime.SpeechEvent:
		switch ev.Type {
		case realtime.TypeSpeechStarted:
			return SpeechStarted{meta}, nil
		case realtime.TypeSpeechStopped:
			return SpeechStopped{meta}, nil
		default:
			return AudioCommitted{meta}, nil
		}

	case *realtime.InputTranscriptionEvent:
		switch ev.Type {
		case realtime.TypeInputTranscriptionComplete:
			var text string
			if ev.Transcript != nil {
				text = *ev.Transcript
			}
			return TranscriptFinal{Meta: meta, Text: text}, nil
		case realtime.TypeInputTranscriptionFailed:
			return TranscriptFinal{Meta: meta, Failed: true}, nil
		default:
			text, ok := ev.PartialText()
			return TranscriptPartial{
				Meta:    meta,
				Text:    text,
				Present: ok,
				Append:  ev.Type == realtime.TypeInputTranscriptionDelta,
			}, nil
		}

	case *realtime.TranscriptDeltaEvent:
		return AssistantDelta{Meta: meta, Delta: ev.Delta}, nil

	case *realtime.TranscriptDoneEvent:
		return AssistantDone{meta}, nil

	case *realtime.FunctionCallArgumentsDoneEvent:
		var args json.RawMessage
		if ev.Arguments != "" {
			args = json.RawMessage(ev.Arguments)
		}
		return ToolCallReady{Meta: meta, Name: ev.Name, CallID: ev.CallID, Arguments: args}, nil

	case *realtime.ErrorEvent:
		return ServerError{Meta: meta, Code: ev.Error.Code, Message: ev.Error.Message}, nil

	case *realtime.ResponseDoneEvent:
		return ResponseDone{Meta: meta, Status: ev.Response.Status, Usage: ev.Response.Usage}, nil

	case *realtime.SessionEvent, *realtime.AudioDeltaEvent, *realtime.RateLimitsUpdatedEvent:
		return Ignored{meta}, nil

	default:
		return Unrecognized{meta}, nil
	}
}
