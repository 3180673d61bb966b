package router

import (
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/transcript"
)

// Placeholder texts shown while the user's speech is being transcribed.
const (
	ProcessingText = "Processing speech..."
	SpeakingText   = "User is speaking..."
)

// Phase is the position in the turn cycle.
type Phase int

// Turn cycle phases.
const (
	Idle Phase = iota
	UserSpeaking
	UserProcessing
	UserFinal
	AssistantStreaming
	AssistantFinal
)

var phaseNames = [...]string{
	Idle:               "idle",
	UserSpeaking:       "user_speaking",
	UserProcessing:     "user_processing",
	UserFinal:          "user_final",
	AssistantStreaming: "assistant_streaming",
	AssistantFinal:     "assistant_final",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// State is everything the reducer needs to decide on an event without
// scanning the transcript. OpenUserTurnID is the ephemeral handle to the
// user turn still being transcribed; User and Assistant hold snapshots of
// the open turns and TailID names the most recently appended turn.
type State struct {
	Phase          Phase
	OpenUserTurnID string
	User           transcript.Turn
	Assistant      transcript.Turn
	TailID         string
	Speaking       bool
}

// Effect is an action the session applies after reducing an event.
type Effect interface{ isEffect() }

// UpsertTurn appends Turn to the transcript, or replaces the turn with the
// same ID.
type UpsertTurn struct{ Turn transcript.Turn }

// ArmWatchdog (re)starts the inactivity watchdog.
type ArmWatchdog struct{}

// CancelWatchdog returns the inactivity watchdog to dormant.
type CancelWatchdog struct{}

// InvokeTool dispatches Call to the tool registry.
type InvokeTool struct{ Call tools.Call }

// ReportServerError surfaces an endpoint error to logs and metrics.
type ReportServerError struct{ Code, Message string }

// RecordUsage reports token usage of a finished response.
type RecordUsage struct{ Usage realtime.UsageInfo }

func (UpsertTurn) isEffect()        {}
func (ArmWatchdog) isEffect()       {}
func (CancelWatchdog) isEffect()    {}
func (InvokeTool) isEffect()        {}
func (ReportServerError) isEffect() {}
func (RecordUsage) isEffect()       {}
