package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/VoiceKit/runtime/media"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

const pcmuAnswer = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n" +
	"a=sendrecv\r\n"

const opusOnlyAnswer = "v=0\r\n" +
	"o=- 1 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func TestValidateAnswer(t *testing.T) {
	assert.NoError(t, ValidateAnswer(pcmuAnswer))
	assert.Error(t, ValidateAnswer(opusOnlyAnswer))
	assert.Error(t, ValidateAnswer("this is not sdp"))
	assert.Error(t, ValidateAnswer(""))
}

func TestSignaler_Exchange(t *testing.T) {
	type request struct{ auth, contentType, query, body string }
	requests := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- request{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			query:       r.URL.RawQuery,
			body:        string(body),
		}
		_, _ = w.Write([]byte(pcmuAnswer))
	}))
	defer srv.Close()

	s := &Signaler{Endpoint: srv.URL + "/v1/realtime", Model: "gpt-4o-realtime-preview", Voice: "coral"}
	answer, err := s.Exchange(context.Background(), "ek_test", "offer-sdp")
	require.NoError(t, err)
	assert.Equal(t, pcmuAnswer, answer)
	got := <-requests
	assert.Equal(t, "Bearer ek_test", got.auth)
	assert.Equal(t, "application/sdp", got.contentType)
	assert.Contains(t, got.query, "model=gpt-4o-realtime-preview")
	assert.Contains(t, got.query, "voice=coral")
	assert.Equal(t, "offer-sdp", got.body)
}

func TestSignaler_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		timeout    time.Duration
		wantStage  string
		wantStatus int
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad token", http.StatusUnauthorized)
			},
			wantStage:  StageSignaling,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed answer",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			wantStage:  StageAnswer,
			wantStatus: http.StatusOK,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout:   50 * time.Millisecond,
			wantStage: StageSignaling,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}
			_, err := (&Signaler{Endpoint: srv.URL}).Exchange(ctx, "ek", "offer")
			var ce *ConnectionError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.wantStage, ce.Stage)
			assert.Equal(t, tt.wantStatus, ce.StatusCode)
		})
	}
}

func TestChannel(t *testing.T) {
	var written []string
	closes := 0
	c := NewChannel(func(b []byte) error {
		written = append(written, string(b))
		return nil
	}, func() error {
		closes++
		return nil
	})

	assert.ErrorIs(t, c.Send(map[string]string{"type": "x"}), ErrNotOpen)
	c.MarkOpen()
	c.MarkOpen()
	require.NoError(t, c.Send(map[string]string{"type": "x"}))
	assert.Equal(t, []string{`{"type":"x"}`}, written)
	assert.Error(t, c.Send(func() {}))

	c.Deliver([]byte("a"))
	c.Deliver([]byte("b"))
	assert.Equal(t, "a", string(<-c.Messages()))
	assert.Equal(t, "b", string(<-c.Messages()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, closes)
	assert.ErrorIs(t, c.Send(map[string]string{}), ErrNotOpen)
	c.Deliver([]byte("dropped"))
	select {
	case <-c.Closed():
	default:
		t.Fatal("closed signal not raised")
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	releases := 0
	ch := NewChannel(func([]byte) error { return nil }, nil)
	conn := NewConnection(ch, nil, func() error {
		releases++
		return nil
	})
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, releases)
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("refused")
	err := &ConnectionError{Stage: StageSignaling, StatusCode: 503, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "503")
	assert.NotContains(t, (&ConnectionError{Stage: StageDial, Cause: cause}).Error(), "status")
}

func TestDecodePacket(t *testing.T) {
	f, ok := decodePacket(&rtp.Packet{Header: rtp.Header{PayloadType: 0}, Payload: media.EncodeMuLaw([]int16{0, 1000})})
	require.True(t, ok)
	assert.Equal(t, media.SampleRate8kHz, f.SampleRate)
	assert.Len(t, f.Samples, 2)

	_, ok = decodePacket(&rtp.Packet{Header: rtp.Header{PayloadType: 111}, Payload: []byte{1}})
	assert.False(t, ok)
	_, ok = decodePacket(&rtp.Packet{})
	assert.False(t, ok)
}

func TestWebRTC_SignalingRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	tr, err := NewWebRTC(WebRTCConfig{Endpoint: srv.URL, Model: "m", Voice: "alloy", SignalingTimeout: 5 * time.Second})
	require.NoError(t, err)
	_, err = tr.Open(context.Background(), Credential{Secret: "ek"}, nil)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusForbidden, ce.StatusCode)
}

func TestWebRTC_MalformedAnswer(t *testing.T) {
	offers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		offers <- string(b)
		_, _ = w.Write([]byte("garbage"))
	}))
	defer srv.Close()

	tr, err := NewWebRTC(WebRTCConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = tr.Open(context.Background(), Credential{Secret: "ek"}, nil)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageAnswer, ce.Stage)
	offer := <-offers
	assert.Contains(t, offer, "PCMU")
	assert.Contains(t, offer, "webrtc-datachannel")
}

func TestWebRTC_CredentialVoiceOverridesConfig(t *testing.T) {
	type signal struct{ voice, auth string }
	signals := make(chan signal, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signals <- signal{voice: r.URL.Query().Get("voice"), auth: r.Header.Get("Authorization")}
		http.Error(w, "stop", http.StatusForbidden)
	}))
	defer srv.Close()

	tr, err := NewWebRTC(WebRTCConfig{Endpoint: srv.URL, Model: "m", Voice: "alloy", SignalingTimeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = tr.Open(context.Background(), Credential{Secret: "ek_1", Voice: "coral"}, nil)
	require.Error(t, err)
	got := <-signals
	assert.Equal(t, "coral", got.voice)
	assert.Equal(t, "Bearer ek_1", got.auth)

	_, err = tr.Open(context.Background(), Credential{Secret: "ek_2"}, nil)
	require.Error(t, err)
	assert.Equal(t, "alloy", (<-signals).voice)
}

func TestExtractAudio(t *testing.T) {
	pcm := media.Frame{Samples: []int16{7, 8}}.Bytes()
	data, err := json.Marshal(map[string]any{
		"type": realtime.TypeAudioDelta, "item_id": "i9", "delta": base64.StdEncoding.EncodeToString(pcm),
	})
	require.NoError(t, err)

	f, summary, ok := extractAudio(data)
	require.True(t, ok)
	assert.Equal(t, []int16{7, 8}, f.Samples)
	assert.NotContains(t, string(summary), `"delta"`)
	ev, err := realtime.ParseServerEvent(summary)
	require.NoError(t, err)
	assert.IsType(t, &realtime.AudioDeltaEvent{}, ev)

	_, _, ok = extractAudio([]byte(`{"type":"session.created"}`))
	assert.False(t, ok)
	_, _, ok = extractAudio([]byte(`{"type":"response.audio.delta","delta":"!!"}`))
	assert.False(t, ok)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func TestWebSocket_RoundTrip(t *testing.T) {
	received := make(chan []byte, 16)
	handshakes := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handshakes <- r.Clone(context.Background())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		pcm := media.Frame{Samples: []int16{1, 2, 3}}.Bytes()
		_ = conn.WriteJSON(map[string]any{
			"type": realtime.TypeAudioDelta, "event_id": "ev1", "response_id": "r1", "item_id": "i1",
			"delta": base64.StdEncoding.EncodeToString(pcm),
		})
		_ = conn.WriteJSON(map[string]any{"type": realtime.TypeSessionCreated, "session": map[string]any{"id": "s1"}})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	defer srv.Close()

	tr := NewWebSocket(WebSocketConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Model: "gpt-4o-realtime-preview"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := &frameStream{ch: make(chan media.Frame, 1)}
	local.ch <- media.Frame{Samples: []int16{5, 6}, SampleRate: media.SampleRate24kHz}

	conn, err := tr.Open(ctx, Credential{Secret: "ek_abc", Voice: "coral"}, local)
	require.NoError(t, err)
	defer conn.Close()

	hs := <-handshakes
	assert.Equal(t, "Bearer ek_abc", hs.Header.Get("Authorization"))
	assert.Equal(t, BetaHeader, hs.Header.Get("OpenAI-Beta"))
	assert.Equal(t, "gpt-4o-realtime-preview", hs.URL.Query().Get("model"))

	select {
	case f := <-conn.RemoteAudio:
		assert.Equal(t, []int16{1, 2, 3}, f.Samples)
		assert.Equal(t, media.SampleRate24kHz, f.SampleRate)
	case <-time.After(2 * time.Second):
		t.Fatal("no remote audio")
	}

	select {
	case msg := <-conn.Control.Messages():
		assert.JSONEq(t,
			`{"type":"response.audio.delta","event_id":"ev1","response_id":"r1","item_id":"i1","audio_bytes":6}`,
			string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no audio delta summary")
	}

	select {
	case msg := <-conn.Control.Messages():
		assert.Contains(t, string(msg), realtime.TypeSessionCreated)
	case <-time.After(2 * time.Second):
		t.Fatal("no control message")
	}

	var appendEv realtime.InputAudioBufferAppendEvent
	require.NoError(t, json.Unmarshal(<-received, &appendEv))
	assert.Equal(t, realtime.TypeInputAudioAppend, appendEv.Type)

	require.NoError(t, conn.Control.Send(realtime.NewResponseCreate()))
	assert.Contains(t, string(<-received), realtime.TypeResponseCreate)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	_, open := <-conn.RemoteAudio
	assert.False(t, open)
}

func TestWebSocket_RejectedIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewWebSocket(WebSocketConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	_, err := tr.Open(context.Background(), Credential{Secret: "bad"}, nil)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageDial, ce.Stage)
	assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

type frameStream struct{ ch chan media.Frame }

func (s *frameStream) Frames() <-chan media.Frame { return s.ch }
func (s *frameStream) Close() error               { return nil }
