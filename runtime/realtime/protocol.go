// Package realtime defines the JSON control-channel protocol spoken with an
// OpenAI Realtime compatible endpoint: the client events a session sends and
// the server events it understands.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Server event types handled by VoiceKit.
const (
	TypeError                      = "error"
	TypeSessionCreated             = "session.created"
	TypeSessionUpdated             = "session.updated"
	TypeSpeechStarted              = "input_audio_buffer.speech_started"
	TypeSpeechStopped              = "input_audio_buffer.speech_stopped"
	TypeAudioCommitted             = "input_audio_buffer.committed"
	TypeInputTranscription         = "conversation.item.input_audio_transcription"
	TypeInputTranscriptionDelta    = "conversation.item.input_audio_transcription.delta"
	TypeInputTranscriptionComplete = "conversation.item.input_audio_transcription.completed"
	TypeInputTranscriptionFailed   = "conversation.item.input_audio_transcription.failed"
	TypeAudioDelta                 = "response.audio.delta"
	TypeAudioTranscriptDelta       = "response.audio_transcript.delta"
	TypeAudioTranscriptDone        = "response.audio_transcript.done"
	TypeFunctionCallArgumentsDone  = "response.function_call_arguments.done"
	TypeResponseDone               = "response.done"
	TypeRateLimitsUpdated          = "rate_limits.updated"
)

// Client event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeInputAudioAppend       = "input_audio_buffer.append"
)

// ClientEvent is the envelope shared by every client event.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// EventType returns the discriminator, used for logging outbound traffic.
func (e ClientEvent) EventType() string { return e.Type }

// SessionUpdateEvent declares modalities, instructions and tools.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// SessionConfig is the session configuration sent in session.update.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConfig `json:"turn_detection,omitempty"`
	Tools                   []ToolDef            `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
}

// TranscriptionConfig enables transcription of the user's audio.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetectionConfig configures server-side voice activity detection.
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// ToolDef is the function declaration format used in session.update.
type ToolDef struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ConversationItemCreateEvent injects a message or tool output.
type ConversationItemCreateEvent struct {
	ClientEvent
	Item ConversationItem `json:"item"`
}

// ConversationItem is one entry of the remote conversation.
type ConversationItem struct {
	ID      string                `json:"id,omitempty"`
	Type    string                `json:"type"` // "message", "function_call_output"
	Role    string                `json:"role,omitempty"`
	Content []ConversationContent `json:"content,omitempty"`
	CallID  string                `json:"call_id,omitempty"`
	Output  string                `json:"output,omitempty"`
}

// ConversationContent is one content part of a message item.
type ConversationContent struct {
	Type string `json:"type"` // "input_text"
	Text string `json:"text,omitempty"`
}

// ResponseCreateEvent asks the endpoint to generate the next response.
type ResponseCreateEvent struct {
	ClientEvent
}

// InputAudioBufferAppendEvent carries base64 PCM16 when audio travels over
// the control channel itself (WebSocket transport).
type InputAudioBufferAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// ServerEvent is the envelope shared by every server event.
type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// EventType returns the discriminator.
func (e ServerEvent) EventType() string { return e.Type }

// ErrorEvent reports a request the endpoint rejected.
type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// SessionEvent covers session.created and session.updated.
type SessionEvent struct {
	ServerEvent
	Session struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Voice string `json:"voice"`
	} `json:"session"`
}

// SpeechEvent covers speech_started, speech_stopped and committed.
type SpeechEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	AudioStartMs int    `json:"audio_start_ms,omitempty"`
	AudioEndMs   int    `json:"audio_end_ms,omitempty"`
}

// InputTranscriptionEvent covers interim and completed user transcription.
// Interim events have been observed carrying the text in either "transcript",
// "delta" or "text".
type InputTranscriptionEvent struct {
	ServerEvent
	ItemID     string       `json:"item_id"`
	Transcript *string      `json:"transcript,omitempty"`
	Delta      *string      `json:"delta,omitempty"`
	Text       *string      `json:"text,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// PartialText returns the best available interim text and whether any was present.
func (e *InputTranscriptionEvent) PartialText() (string, bool) {
	for _, s := range []*string{e.Transcript, e.Delta, e.Text} {
		if s != nil {
			return *s, true
		}
	}
	return "", false
}

// AudioDeltaEvent carries base64 PCM16 audio (WebSocket transport only).
type AudioDeltaEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

// TranscriptDeltaEvent is a fragment of the assistant's spoken text.
type TranscriptDeltaEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

// TranscriptDoneEvent closes the assistant's spoken text.
type TranscriptDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

// FunctionCallArgumentsDoneEvent requests a local tool invocation.
type FunctionCallArgumentsDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

// ResponseDoneEvent closes a response and reports token usage.
type ResponseDoneEvent struct {
	ServerEvent
	Response struct {
		ID     string     `json:"id"`
		Status string     `json:"status"`
		Usage  *UsageInfo `json:"usage"`
	} `json:"response"`
}

// UsageInfo contains token usage information.
type UsageInfo struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// RateLimitsUpdatedEvent provides rate limit information.
type RateLimitsUpdatedEvent struct {
	ServerEvent
	RateLimits []RateLimit `json:"rate_limits"`
}

// RateLimit contains rate limit details.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// ParseServerEvent decodes a raw control message into its typed form. Types
// VoiceKit does not model come back as *ServerEvent. An error is returned
// only when the message is not a JSON object with a string "type".
func ParseServerEvent(data []byte) (interface{}, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}
	if base.Type == "" {
		return nil, fmt.Errorf("missing event type")
	}

	var target interface{}
	switch base.Type {
	case TypeError:
		target = &ErrorEvent{}
	case TypeSessionCreated, TypeSessionUpdated:
		target = &SessionEvent{}
	case TypeSpeechStarted, TypeSpeechStopped, TypeAudioCommitted:
		target = &SpeechEvent{}
	case TypeInputTranscription, TypeInputTranscriptionDelta, TypeInputTranscriptionComplete, TypeInputTranscriptionFailed:
		target = &InputTranscriptionEvent{}
	case TypeAudioDelta:
		target = &AudioDeltaEvent{}
	case TypeAudioTranscriptDelta:
		target = &TranscriptDeltaEvent{}
	case TypeAudioTranscriptDone:
		target = &TranscriptDoneEvent{}
	case TypeFunctionCallArgumentsDone:
		target = &FunctionCallArgumentsDoneEvent{}
	case TypeResponseDone:
		target = &ResponseDoneEvent{}
	case TypeRateLimitsUpdated:
		target = &RateLimitsUpdatedEvent{}
	default:
		return &base, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}
	return target, nil
}
