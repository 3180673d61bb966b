package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/VoiceKit/runtime/credentials"
	"github.com/AltairaLabs/VoiceKit/runtime/events"
	"github.com/AltairaLabs/VoiceKit/runtime/media"
	"github.com/AltairaLabs/VoiceKit/runtime/prompt"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/transcript"
	"github.com/AltairaLabs/VoiceKit/runtime/transport"
	"github.com/AltairaLabs/VoiceKit/runtime/transport/mock"
	"github.com/AltairaLabs/VoiceKit/runtime/watchdog"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond

	primingCount = 4
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t         *testing.T
	transport *mock.Transport
	clock     *watchdog.FakeClock
	registry  *tools.Registry
	ctrl      *Controller

	mu    sync.Mutex
	ended []Ended
}

type option func(*Config)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		transport: mock.New(),
		clock:     watchdog.NewFakeClock(epoch),
		registry:  tools.NewRegistry(),
	}
	cfg := Config{
		Transport: h.transport,
		Source:    media.SilenceSource{SampleRate: 24000, FrameDuration: 20 * time.Millisecond},
		Issuer: credentials.StaticIssuer{Token: credentials.Token{
			Value:     "ek_test",
			ExpiresAt: epoch.Add(time.Minute),
		}},
		Selector:      "maya",
		Tools:         h.registry,
		Scenario:      prompt.Scenario{Level: prompt.Beginner, Topic: "ordering food"},
		Policy:        watchdog.TwoPhase(15*time.Second, 15, time.Second),
		Clock:         h.clock,
		TransportName: "mock",
		OpenTimeout:   time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctrl, err := New(cfg)
	require.NoError(t, err)
	ctrl.OnEnded(func(e Ended) {
		h.mu.Lock()
		h.ended = append(h.ended, e)
		h.mu.Unlock()
	})
	h.ctrl = ctrl
	t.Cleanup(ctrl.Stop)
	return h
}

func (h *harness) start() *mock.Conn {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.Start(context.Background()))
	conn := h.transport.Last()
	require.NotNil(h.t, conn)
	_, err := conn.WaitSent(primingCount, waitFor)
	require.NoError(h.t, err)
	return conn
}

func (h *harness) endings() []Ended {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Ended(nil), h.ended...)
}

func (h *harness) waitEnded(n int) []Ended {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.endings()) >= n }, waitFor, tick)
	return h.endings()
}

func (h *harness) waitTurns(n int) []transcript.Turn {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.ctrl.Transcript()) >= n }, waitFor, tick)
	return h.ctrl.Transcript()
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Transport: mock.New()})
	assert.Error(t, err)

	_, err = New(Config{Transport: mock.New(), Source: media.SilenceSource{}})
	assert.Error(t, err)

	c, err := New(Config{Transport: mock.New(), Source: media.SilenceSource{}, Issuer: credentials.StaticIssuer{}})
	require.NoError(t, err)
	assert.Equal(t, Idle, c.Status())
	assert.Equal(t, TextIdle, c.StatusText())
	assert.Empty(t, c.SessionID())
}

func TestStart_SendsPrimingSequence(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	assert.Equal(t, Active, h.ctrl.Status())
	assert.Equal(t, TextActive, h.ctrl.StatusText())
	assert.NotEmpty(t, h.ctrl.SessionID())
	assert.Equal(t, []transport.Credential{{Secret: "ek_test"}}, h.transport.Credentials())
	assert.Equal(t, []string{
		realtime.TypeSessionUpdate,
		realtime.TypeConversationItemCreate,
		realtime.TypeConversationItemCreate,
		realtime.TypeResponseCreate,
	}, conn.SentTypes())
	assert.NotNil(t, conn.Local())
}

func TestStart_SessionUpdateCarriesConfiguredSession(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Issuer = credentials.StaticIssuer{Token: credentials.Token{
			Value:     "ek_voice",
			ExpiresAt: epoch.Add(time.Minute),
			Voice:     "coral",
		}}
		c.Session = realtime.SessionConfig{
			Voice:                   "alloy",
			InputAudioTranscription: &realtime.TranscriptionConfig{Model: "whisper-1"},
			TurnDetection:           &realtime.TurnDetectionConfig{Type: "server_vad"},
		}
	})
	require.NoError(t, h.registry.RegisterTool(tools.Descriptor{Name: "showHints", Description: "Show hints"}, nil))
	conn := h.start()

	assert.Equal(t, []transport.Credential{{Secret: "ek_voice", Voice: "coral"}}, h.transport.Credentials())

	var update realtime.SessionUpdateEvent
	require.NoError(t, json.Unmarshal(conn.Sent()[0], &update))
	assert.Equal(t, realtime.TypeSessionUpdate, update.Type)
	assert.Equal(t, "coral", update.Session.Voice)
	require.NotNil(t, update.Session.InputAudioTranscription)
	assert.Equal(t, "whisper-1", update.Session.InputAudioTranscription.Model)
	require.NotNil(t, update.Session.TurnDetection)
	assert.Equal(t, "server_vad", update.Session.TurnDetection.Type)
	require.Len(t, update.Session.Tools, 1)
	assert.Equal(t, "showHints", update.Session.Tools[0].Name)
	assert.Equal(t, "auto", update.Session.ToolChoice)
}

func TestStart_OnlyFromIdle(t *testing.T) {
	h := newHarness(t)
	h.start()
	assert.ErrorIs(t, h.ctrl.Start(context.Background()), ErrAlreadyStarted)
	assert.Len(t, h.transport.Conns(), 1)
}

func TestStart_FailureRollsBack(t *testing.T) {
	connectErr := &transport.ConnectionError{Stage: transport.StageSignaling, StatusCode: 500, Cause: errors.New("upstream")}

	tests := []struct {
		name   string
		opt    option
		stage  string
		target error
	}{
		{
			name:   "microphone denied",
			opt:    func(c *Config) { c.Source = media.DeniedSource{Device: "default"} },
			stage:  StageMedia,
			target: media.ErrPermissionDenied,
		},
		{
			name: "issuer failure",
			opt: func(c *Config) {
				c.Issuer = credentials.IssuerFunc(func(context.Context, string) (credentials.Token, error) {
					return credentials.Token{}, errors.New("issuer unavailable")
				})
			},
			stage: StageCredential,
		},
		{
			name: "expired credential",
			opt: func(c *Config) {
				c.Issuer = credentials.StaticIssuer{Token: credentials.Token{Value: "old", ExpiresAt: epoch.Add(-time.Second)}}
			},
			stage:  StageCredential,
			target: ErrCredentialExpired,
		},
		{
			name:   "signaling rejected",
			stage:  StageConnect,
			target: connectErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []option{}
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}
			h := newHarness(t, opts...)
			if tt.stage == StageConnect {
				h.transport.OpenErr = connectErr
			}

			err := h.ctrl.Start(context.Background())
			var se *StartupError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, Idle, h.ctrl.Status())
			assert.Equal(t, TextFailed, h.ctrl.StatusText())
			assert.Empty(t, h.ctrl.SessionID())
			assert.Empty(t, h.endings())
		})
	}
}

func TestStart_ConfigureFailureClosesConnection(t *testing.T) {
	h := newHarness(t)
	h.transport.DeferOpen = true

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background()) }()

	require.Eventually(t, func() bool { return h.transport.Last() != nil }, waitFor, tick)
	conn := h.transport.Last()
	conn.SendErr = errors.New("write failed")
	conn.Open()

	err := <-done
	var se *StartupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageConfigure, se.Stage)
	assert.True(t, conn.Closed())
	assert.Equal(t, Idle, h.ctrl.Status())

	// The controller is reusable after a failed start.
	h.transport.DeferOpen = false
	h.start()
	assert.Len(t, h.transport.Conns(), 2)
}

func TestStart_ChannelClosedBeforeOpen(t *testing.T) {
	h := newHarness(t)
	h.transport.DeferOpen = true

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background()) }()
	require.Eventually(t, func() bool { return h.transport.Last() != nil }, waitFor, tick)
	h.transport.Last().Drop()

	err := <-done
	var ce *transport.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Idle, h.ctrl.Status())
}

func TestStop_DuringConnecting(t *testing.T) {
	h := newHarness(t)
	h.transport.DeferOpen = true

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background()) }()
	require.Eventually(t, func() bool { return h.transport.Last() != nil }, waitFor, tick)
	assert.Equal(t, Connecting, h.ctrl.Status())
	assert.Equal(t, TextConnecting, h.ctrl.StatusText())

	h.ctrl.Stop()
	require.Error(t, <-done)
	assert.Equal(t, Idle, h.ctrl.Status())
	assert.Equal(t, TextStopped, h.ctrl.StatusText())
	assert.True(t, h.transport.Last().Closed())
	assert.Empty(t, h.endings())
}

func TestStop_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Stop()

	conn := h.start()
	h.ctrl.Stop()
	h.ctrl.Stop()

	assert.Equal(t, Idle, h.ctrl.Status())
	assert.Equal(t, TextStopped, h.ctrl.StatusText())
	assert.True(t, conn.Closed())
	assert.Equal(t, 1, conn.CloseCount())

	ended := h.endings()
	require.Len(t, ended, 1)
	assert.Equal(t, ReasonUser, ended[0].Reason)
	assert.NoError(t, ended[0].Err)
}

func TestStop_ClearsSessionState(t *testing.T) {
	h := newHarness(t)
	conn := h.start()
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Hello"}`)
	h.waitTurns(1)
	require.NotEmpty(t, h.ctrl.RawEvents())

	h.ctrl.Stop()

	assert.Empty(t, h.ctrl.Transcript())
	assert.Empty(t, h.ctrl.RawEvents())
	assert.Zero(t, h.ctrl.Countdown())
	assert.False(t, h.ctrl.Speaking())
	assert.Zero(t, h.ctrl.LocalVolume())
	assert.Zero(t, h.ctrl.RemoteVolume())

	ended := h.endings()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Transcript, 1)
	assert.Equal(t, "Hello", ended[0].Transcript[0].Text)
}

func TestSession_UserTurnLifecycle(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	conn.Inject(`{"type":"input_audio_buffer.speech_started","item_id":"i1"}`)
	conn.Inject(`{"type":"input_audio_buffer.committed","item_id":"i1"}`)
	conn.Inject(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"I would like a coffee"}`)
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Sure, "}`)
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"what size?"}`)
	conn.Inject(`{"type":"response.audio_transcript.done"}`)

	require.Eventually(t, func() bool {
		turns := h.ctrl.Transcript()
		return len(turns) == 2 && turns[1].IsFinal
	}, waitFor, tick)

	turns := h.ctrl.Transcript()
	assert.Equal(t, transcript.RoleUser, turns[0].Role)
	assert.Equal(t, "I would like a coffee", turns[0].Text)
	assert.True(t, turns[0].IsFinal)
	assert.Equal(t, transcript.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Sure, what size?", turns[1].Text)
	assert.False(t, h.ctrl.Speaking())

	raw := h.ctrl.RawEvents()
	require.Len(t, raw, 6)
	assert.Equal(t, realtime.TypeSpeechStarted, raw[0].Type)
}

func TestSession_MalformedMessageIsDropped(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()
	var parseFailures atomic.Int32
	bus.Subscribe(events.EventProtocolParseFailed, func(*events.Event) { parseFailures.Add(1) })

	h := newHarness(t, func(c *Config) { c.Bus = bus })
	conn := h.start()

	conn.Inject(`not json`)
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"still here"}`)

	turns := h.waitTurns(1)
	assert.Equal(t, "still here", turns[0].Text)
	assert.Equal(t, Active, h.ctrl.Status())
	require.Eventually(t, func() bool { return parseFailures.Load() == 1 }, waitFor, tick)

	raw := h.ctrl.RawEvents()
	require.Len(t, raw, 2)
	assert.Empty(t, raw[0].Type)
}

func TestSession_ToolCallSendsResultAndContinue(t *testing.T) {
	h := newHarness(t)
	var gotArgs json.RawMessage
	require.NoError(t, h.registry.Register("showHints", func(_ context.Context, args json.RawMessage) (any, error) {
		gotArgs = args
		return map[string]bool{"ok": true}, nil
	}))
	conn := h.start()

	conn.Inject(`{"type":"response.function_call_arguments.done","call_id":"call_1","name":"showHints","arguments":"{\"hints\":[\"a\"]}"}`)

	sent, err := conn.WaitSent(primingCount+2, waitFor)
	require.NoError(t, err)
	require.Len(t, sent, primingCount+2)
	types := conn.SentTypes()[primingCount:]
	assert.Equal(t, []string{realtime.TypeConversationItemCreate, realtime.TypeResponseCreate}, types)

	var item struct {
		Item struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(sent[primingCount], &item))
	assert.Equal(t, "function_call_output", item.Item.Type)
	assert.Equal(t, "call_1", item.Item.CallID)
	assert.JSONEq(t, `{"ok":true}`, item.Item.Output)
	assert.JSONEq(t, `{"hints":["a"]}`, string(gotArgs))
}

func TestSession_UnknownAndFailingToolsSendNothing(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()
	var failures atomic.Int32
	bus.Subscribe(events.EventToolFailed, func(*events.Event) { failures.Add(1) })

	h := newHarness(t, func(c *Config) { c.Bus = bus })
	require.NoError(t, h.registry.Register("broken", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	}))
	conn := h.start()

	conn.Inject(`{"type":"response.function_call_arguments.done","call_id":"c1","name":"nope","arguments":"{}"}`)
	conn.Inject(`{"type":"response.function_call_arguments.done","call_id":"c2","name":"broken","arguments":"{}"}`)
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"carry on"}`)

	h.waitTurns(1)
	require.Eventually(t, func() bool { return failures.Load() == 2 }, waitFor, tick)
	h.registry.Wait()
	assert.Len(t, conn.Sent(), primingCount)
	assert.Equal(t, Active, h.ctrl.Status())
}

func TestSession_ToolDoesNotBlockTranscript(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	require.NoError(t, h.registry.Register("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))
	conn := h.start()

	conn.Inject(`{"type":"response.function_call_arguments.done","call_id":"c1","name":"slow","arguments":"{}"}`)
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"meanwhile"}`)
	h.waitTurns(1)
	assert.Len(t, conn.Sent(), primingCount)

	close(release)
	_, err := conn.WaitSent(primingCount+2, waitFor)
	require.NoError(t, err)
}

func TestSession_LateToolResultIgnoredAfterStop(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	require.NoError(t, h.registry.Register("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	}))
	conn := h.start()

	conn.Inject(`{"type":"response.function_call_arguments.done","call_id":"c1","name":"slow","arguments":"{}"}`)
	<-started
	h.ctrl.Stop()
	h.registry.Wait()

	assert.Len(t, conn.Sent(), primingCount)
	assert.Equal(t, Idle, h.ctrl.Status())
}

func TestSendText(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.SendText("hello"), ErrNotActive)

	conn := h.start()
	assert.ErrorIs(t, h.ctrl.SendText("   "), ErrEmptyMessage)

	require.NoError(t, h.ctrl.SendText("  Can I see the menu?  "))
	turns := h.ctrl.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, transcript.RoleUser, turns[0].Role)
	assert.Equal(t, "Can I see the menu?", turns[0].Text)
	assert.True(t, turns[0].IsFinal)

	sent := conn.Sent()
	require.Len(t, sent, primingCount+2)
	assert.Equal(t, []string{realtime.TypeConversationItemCreate, realtime.TypeResponseCreate}, conn.SentTypes()[primingCount:])
	assert.Contains(t, string(sent[primingCount]), "Can I see the menu?")
}

func TestWatchdog_TerminatesIdleSession(t *testing.T) {
	h := newHarness(t)
	updates, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()
	conn := h.start()

	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Are you there?"}`)
	require.Eventually(t, func() bool { return h.clock.Pending() > 0 }, waitFor, tick)

	h.clock.Advance(16 * time.Second)
	require.Eventually(t, func() bool { return h.ctrl.Countdown() > 0 }, waitFor, tick)
	assert.Equal(t, 14, h.ctrl.Countdown())

	h.clock.Advance(15 * time.Second)
	ended := h.waitEnded(1)
	assert.Equal(t, ReasonWatchdog, ended[0].Reason)
	assert.ErrorIs(t, ended[0].Err, watchdog.ErrInactivity)
	assert.Equal(t, Idle, h.ctrl.Status())
	assert.Zero(t, h.ctrl.Countdown())
	assert.True(t, conn.Closed())

	var last Snapshot
	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			last = s
		default:
		}
		return last.Status == Idle
	}, waitFor, tick)
	assert.Equal(t, TextStopped, last.StatusText)
}

func TestWatchdog_UserSpeechCancelsCountdown(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Hello?"}`)
	require.Eventually(t, func() bool { return h.clock.Pending() > 0 }, waitFor, tick)
	h.clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return h.ctrl.Countdown() > 0 }, waitFor, tick)

	conn.Inject(`{"type":"input_audio_buffer.speech_started","item_id":"i1"}`)
	require.Eventually(t, func() bool { return h.ctrl.Countdown() == 0 }, waitFor, tick)

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.endings())
	assert.Equal(t, Active, h.ctrl.Status())
}

func TestWatchdog_Disabled(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Policy = nil })
	conn := h.start()

	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Hi"}`)
	h.waitTurns(1)
	h.clock.Advance(time.Hour)
	assert.Zero(t, h.clock.Pending())
	assert.Equal(t, Active, h.ctrl.Status())
}

func TestSession_ConnectionDropEndsOnce(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	conn.Drop()
	ended := h.waitEnded(1)
	assert.Equal(t, ReasonConnection, ended[0].Reason)
	assert.Error(t, ended[0].Err)

	h.ctrl.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.endings(), 1)
	assert.Equal(t, Idle, h.ctrl.Status())
}

func TestStop_LeavesVolumeMetersStopped(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 20; i++ {
		h.start()
		assert.True(t, h.ctrl.remoteMeter.Running())
		h.ctrl.Stop()
		assert.False(t, h.ctrl.localMeter.Running())
		assert.False(t, h.ctrl.remoteMeter.Running())
	}

	h.transport.OpenErr = errors.New("refused")
	require.Error(t, h.ctrl.Start(context.Background()))
	assert.False(t, h.ctrl.localMeter.Running())
	assert.False(t, h.ctrl.remoteMeter.Running())
}

func TestSession_RemoteAudioReachesSink(t *testing.T) {
	sink := &media.RecordingSink{}
	h := newHarness(t, func(c *Config) { c.Sink = sink })
	conn := h.start()

	conn.PlayRemote(media.Frame{SampleRate: 24000, Samples: []int16{100, -100, 100, -100}})
	require.Eventually(t, func() bool { return len(sink.Frames()) == 1 }, waitFor, tick)
}

func TestSession_RestartAfterStop(t *testing.T) {
	h := newHarness(t)
	first := h.start()
	firstID := h.ctrl.SessionID()
	h.ctrl.Stop()

	second := h.start()
	assert.NotSame(t, first, second)
	assert.NotEqual(t, firstID, h.ctrl.SessionID())
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	// Messages on the old connection no longer reach the transcript.
	first.Inject(`{"type":"response.audio_transcript.delta","delta":"ghost"}`)
	second.Inject(`{"type":"response.audio_transcript.delta","delta":"fresh"}`)
	turns := h.waitTurns(1)
	assert.Equal(t, "fresh", turns[0].Text)
}

func TestSession_PublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus()
	var mu sync.Mutex
	var seen []events.EventType
	bus.SubscribeAll(func(e *events.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	h := newHarness(t, func(c *Config) { c.Bus = bus })
	conn := h.start()
	conn.Inject(`{"type":"response.audio_transcript.delta","delta":"Bye"}`)
	conn.Inject(`{"type":"response.audio_transcript.done"}`)
	require.Eventually(t, func() bool {
		turns := h.ctrl.Transcript()
		return len(turns) == 1 && turns[0].IsFinal
	}, waitFor, tick)
	h.ctrl.Stop()
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.EventSessionStarting, seen[0])
	assert.Contains(t, seen, events.EventSessionStarted)
	assert.Contains(t, seen, events.EventTurnFinalized)
	assert.Equal(t, events.EventSessionEnded, seen[len(seen)-1])
}
