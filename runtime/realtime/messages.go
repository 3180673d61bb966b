package realtime

import (
	"encoding/base64"
	"encoding/json"
)

// Conversation roles used in message items.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Default modalities requested in session.update.
var DefaultModalities = []string{"text", "audio"}

// NewSessionUpdate wraps cfg in a session.update. Modalities default to
// DefaultModalities and tool_choice to "auto" when tools are declared.
// Instructions are normally carried as a system item instead so the update
// stays small.
func NewSessionUpdate(cfg SessionConfig) *SessionUpdateEvent {
	if len(cfg.Modalities) == 0 {
		cfg.Modalities = DefaultModalities
	}
	if len(cfg.Tools) > 0 && cfg.ToolChoice == "" {
		cfg.ToolChoice = "auto"
	}
	return &SessionUpdateEvent{
		ClientEvent: ClientEvent{Type: TypeSessionUpdate},
		Session:     cfg,
	}
}

// NewMessage builds a conversation.item.create carrying one input_text part.
func NewMessage(role, text string) *ConversationItemCreateEvent {
	return &ConversationItemCreateEvent{
		ClientEvent: ClientEvent{Type: TypeConversationItemCreate},
		Item: ConversationItem{
			Type:    "message",
			Role:    role,
			Content: []ConversationContent{{Type: "input_text", Text: text}},
		},
	}
}

// NewFunctionCallOutput builds the tool-result item for callID. output is
// JSON-encoded; a value that cannot be encoded yields an error.
func NewFunctionCallOutput(callID string, output any) (*ConversationItemCreateEvent, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return &ConversationItemCreateEvent{
		ClientEvent: ClientEvent{Type: TypeConversationItemCreate},
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: string(encoded),
		},
	}, nil
}

// NewResponseCreate asks the endpoint to continue the conversation.
func NewResponseCreate() *ResponseCreateEvent {
	return &ResponseCreateEvent{ClientEvent: ClientEvent{Type: TypeResponseCreate}}
}

// NewAudioAppend wraps little-endian PCM16 bytes for input_audio_buffer.append.
func NewAudioAppend(pcm []byte) *InputAudioBufferAppendEvent {
	return &InputAudioBufferAppendEvent{
		ClientEvent: ClientEvent{Type: TypeInputAudioAppend},
		Audio:       base64.StdEncoding.EncodeToString(pcm),
	}
}

// DecodeAudio returns the PCM16 bytes of a response.audio.delta event.
func (e *AudioDeltaEvent) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Delta)
}

// TypeOf extracts the "type" field of a protocol value for logging. It
// returns "" for values that are not protocol events.
func TypeOf(v any) string {
	if t, ok := v.(interface{ EventType() string }); ok {
		return t.EventType()
	}
	return ""
}
