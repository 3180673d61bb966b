package router

import (
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/transcript"
)

// Reduce applies one event to s. It never mutates its input, performs no
// I/O and is deterministic: identifiers and timestamps for new turns come
// from the event's Meta.
func Reduce(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case SpeechStarted:
		if s.OpenUserTurnID == "" {
			s.User = transcript.Turn{
				ID:        e.NewID,
				Role:      transcript.RoleUser,
				Timestamp: e.At,
			}
			s.OpenUserTurnID = e.NewID
			s.TailID = e.NewID
		}
		s.User.Status = transcript.StatusSpeaking
		s.Phase = UserSpeaking
		return s, []Effect{CancelWatchdog{}, UpsertTurn{Turn: s.User}}

	case SpeechStopped:
		return updateUser(s, func(t *transcript.Turn) {
			t.Status = transcript.StatusSpeaking
		})

	case AudioCommitted:
		if s.OpenUserTurnID == "" {
			return s, nil
		}
		s.Phase = UserProcessing
		return updateUser(s, func(t *transcript.Turn) {
			t.Text = ProcessingText
			t.Status = transcript.StatusProcessing
		})

	case TranscriptPartial:
		if s.OpenUserTurnID == "" {
			return s, nil
		}
		s.Phase = UserSpeaking
		return updateUser(s, func(t *transcript.Turn) {
			switch {
			case !e.Present:
				t.Text = SpeakingText
			case e.Append && t.Status != transcript.StatusProcessing && t.Text != SpeakingText:
				t.Text += e.Text
			default:
				t.Text = e.Text
			}
			t.Status = transcript.StatusSpeaking
			t.IsFinal = false
		})

	case TranscriptFinal:
		if s.OpenUserTurnID == "" {
			return s, nil
		}
		s, effects := updateUser(s, func(t *transcript.Turn) {
			t.Text = e.Text
			t.IsFinal = true
			t.Status = transcript.StatusFinal
		})
		s.OpenUserTurnID = ""
		s.User = transcript.Turn{}
		s.Phase = UserFinal
		return s, effects

	case UserText:
		turn := transcript.Turn{
			ID:        e.NewID,
			Role:      transcript.RoleUser,
			Text:      e.Text,
			Timestamp: e.At,
			IsFinal:   true,
			Status:    transcript.StatusFinal,
		}
		s.TailID = turn.ID
		s.Phase = UserFinal
		return s, []Effect{CancelWatchdog{}, UpsertTurn{Turn: turn}}

	case AssistantDelta:
		effects := []Effect{ArmWatchdog{}}
		s.Speaking = true
		s.Phase = AssistantStreaming
		if s.Assistant.ID != "" && s.TailID == s.Assistant.ID {
			s.Assistant.Text += e.Delta
			return s, append(effects, UpsertTurn{Turn: s.Assistant})
		}
		if s.Assistant.ID != "" {
			stale := s.Assistant
			stale.IsFinal = true
			effects = append(effects, UpsertTurn{Turn: stale})
		}
		s.Assistant = transcript.Turn{
			ID:        e.NewID,
			Role:      transcript.RoleAssistant,
			Text:      e.Delta,
			Timestamp: e.At,
		}
		s.TailID = e.NewID
		return s, append(effects, UpsertTurn{Turn: s.Assistant})

	case AssistantDone:
		s.Speaking = false
		if s.Assistant.ID == "" {
			return s, nil
		}
		done := s.Assistant
		done.IsFinal = true
		s.Assistant = transcript.Turn{}
		s.Phase = AssistantFinal
		return s, []Effect{UpsertTurn{Turn: done}}

	case ToolCallReady:
		return s, []Effect{InvokeTool{Call: tools.Call{
			Name:      e.Name,
			CallID:    e.CallID,
			Arguments: e.Arguments,
		}}}

	case ServerError:
		return s, []Effect{ReportServerError{Code: e.Code, Message: e.Message}}

	case ResponseDone:
		if s.OpenUserTurnID == "" && s.Assistant.ID == "" {
			s.Phase = Idle
		}
		if e.Usage == nil {
			return s, nil
		}
		return s, []Effect{RecordUsage{Usage: *e.Usage}}

	default:
		return s, nil
	}
}

// updateUser mutates the open user turn. Without an open turn the event is
// a no-op.
func updateUser(s State, mutate func(*transcript.Turn)) (State, []Effect) {
	if s.OpenUserTurnID == "" {
		return s, nil
	}
	mutate(&s.User)
	return s, []Effect{UpsertTurn{Turn: s.User}}
}
