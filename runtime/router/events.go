// Package router turns control-channel messages into transcript and tool
// effects. Decode parses a raw message into a typed Event; Reduce is a pure
// function from the current State and one Event to the next State plus the
// Effects the session must apply.
package router

import (
	"encoding/json"
	"time"

	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

// Meta is attached to every event. Type is the wire discriminator, At the
// arrival time, and NewID the identifier used if the event creates a turn.
type Meta struct {
	Type  string
	At    time.Time
	NewID string
}

// Info returns the event metadata.
func (m Meta) Info() Meta { return m }

func (Meta) isEvent() {}

// Event is one inbound (or locally originated) occurrence processed by the
// reducer.
type Event interface {
	Info() Meta
	isEvent()
}

// SpeechStarted reports that the endpoint detected the user speaking.
type SpeechStarted struct{ Meta }

// SpeechStopped reports the end of detected user speech.
type SpeechStopped struct{ Meta }

// AudioCommitted reports that buffered user audio was committed for
// transcription.
type AudioCommitted struct{ Meta }

// TranscriptPartial carries interim user transcription. Present is false
// when the message carried no text at all. Append marks incremental
// fragments that extend the current text.
type TranscriptPartial struct {
	Meta
	Text    string
	Present bool
	Append  bool
}

// TranscriptFinal carries the completed user transcription. Failed is set
// when the endpoint gave up transcribing.
type TranscriptFinal struct {
	Meta
	Text   string
	Failed bool
}

// AssistantDelta is a fragment of the assistant's spoken text.
type AssistantDelta struct {
	Meta
	Delta string
}

// AssistantDone closes the assistant's spoken text.
type AssistantDone struct{ Meta }

// ToolCallReady asks for a local tool invocation.
type ToolCallReady struct {
	Meta
	Name      string
	CallID    string
	Arguments json.RawMessage
}

// ServerError is an error reported by the endpoint.
type ServerError struct {
	Meta
	Code    string
	Message string
}

// ResponseDone closes a response.
type ResponseDone struct {
	Meta
	Status string
	Usage  *realtime.UsageInfo
}

// UserText is a message typed by the local user.
type UserText struct {
	Meta
	Text string
}

// Ignored is a known message type that needs no handling.
type Ignored struct{ Meta }

// Unrecognized is a message of a type the router does not know.
type Unrecognized struct{ Meta }
