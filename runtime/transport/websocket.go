package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/media"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

// WebSocket connection constants
const (
	wsDialTimeout      = 10 * time.Second
	wsWriteWait        = 10 * time.Second
	wsMaxMessageSize   = 64 * 1024 * 1024
	wsMaxRetries       = 3
	wsRetryBackoffBase = time.Second
	wsRetryBackoffMax  = 10 * time.Second
	wsCloseGracePeriod = 5 * time.Second
	wsHeartbeat        = 30 * time.Second

	// BetaHeader selects the realtime protocol revision.
	BetaHeader = "realtime=v1"
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	URL        string
	Model      string
	MaxRetries int
	Heartbeat  time.Duration
}

// WebSocket carries the control protocol and audio over one WebSocket.
// Local audio is sent as input_audio_buffer.append events; remote audio is
// taken out of response.audio.delta events before they reach the control
// channel.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer websocket.Dialer
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = wsMaxRetries
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = wsHeartbeat
	}
	return &WebSocket{cfg: cfg, dialer: websocket.Dialer{HandshakeTimeout: wsDialTimeout}}
}

func (w *WebSocket) url() (string, error) {
	u, err := url.Parse(w.cfg.URL)
	if err != nil {
		return "", err
	}
	if w.cfg.Model != "" {
		q := u.Query()
		q.Set("model", w.cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (w *WebSocket) dial(ctx context.Context, target, credential string) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+credential)
	headers.Set("OpenAI-Beta", BetaHeader)

	logger.DebugContext(ctx, "connecting to realtime websocket", "url", target)
	conn, resp, err := w.dialer.DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, &ConnectionError{Stage: StageDial, StatusCode: resp.StatusCode, Cause: err}
		}
		return nil, &ConnectionError{Stage: StageDial, Cause: err}
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	conn.SetReadLimit(wsMaxMessageSize)
	return conn, nil
}

// dialWithRetry attempts to connect with exponential backoff. Rejections
// with a 4xx status are not retried.
func (w *WebSocket) dialWithRetry(ctx context.Context, target, credential string) (*websocket.Conn, error) {
	var lastErr error
	backoff := wsRetryBackoffBase

	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		conn, err := w.dial(ctx, target, credential)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ce, ok := err.(*ConnectionError); ok && ce.StatusCode >= 400 && ce.StatusCode < 500 {
			return nil, err
		}
		logger.WarnContext(ctx, "realtime websocket connection attempt failed",
			"attempt", attempt,
			"maxAttempts", w.cfg.MaxRetries,
			"error", err)

		if attempt < w.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, &ConnectionError{Stage: StageDial, Cause: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > wsRetryBackoffMax {
				backoff = wsRetryBackoffMax
			}
		}
	}
	return nil, &ConnectionError{Stage: StageDial, Cause: fmt.Errorf("failed after %d attempts: %w", w.cfg.MaxRetries, lastErr)}
}

// Open dials the endpoint. The control channel is open as soon as Open
// returns. The voice is chosen by session.update, so cred.Voice is unused.
func (w *WebSocket) Open(ctx context.Context, cred Credential, local media.Stream) (*Connection, error) {
	ctx = logger.WithTransport(ctx, "websocket")
	target, err := w.url()
	if err != nil {
		return nil, &ConnectionError{Stage: StageDial, Cause: err}
	}
	conn, err := w.dialWithRetry(ctx, target, cred.Secret)
	if err != nil {
		return nil, err
	}

	var writeMu sync.Mutex
	write := func(kind int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
		return conn.WriteMessage(kind, data)
	}

	control := NewChannel(func(data []byte) error {
		return write(websocket.TextMessage, data)
	}, func() error {
		_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.SetReadDeadline(time.Now().Add(wsCloseGracePeriod))
		return conn.Close()
	})
	control.MarkOpen()

	remote := make(chan media.Frame, remoteBuffer)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		w.receiveLoop(ctx, conn, control, remote)
	}()
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx, control.Closed(), func() error { return write(websocket.PingMessage, nil) })
	}()
	go func() {
		defer wg.Done()
		w.sendLoop(ctx, local, control)
	}()

	logger.InfoContext(ctx, "realtime websocket connected")
	return NewConnection(control, remote, func() error {
		wg.Wait()
		close(remote)
		return nil
	}), nil
}

func (w *WebSocket) receiveLoop(ctx context.Context, conn *websocket.Conn, control *Channel, remote chan<- media.Frame) {
	defer func() { _ = control.Close() }()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-control.Closed():
				default:
					logger.WarnContext(ctx, "realtime websocket read failed", "error", err)
				}
			}
			return
		}
		if f, summary, ok := extractAudio(data); ok {
			select {
			case remote <- f:
			default:
			}
			data = summary
		}
		control.Deliver(data)
	}
}

// audioDeltaSummary replaces an audio delta on the control channel so the
// event still reaches the event log without its base64 payload.
type audioDeltaSummary struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	AudioBytes int    `json:"audio_bytes"`
}

// extractAudio decodes response.audio.delta payloads into a frame and the
// summary to deliver in place of the original message.
func extractAudio(data []byte) (media.Frame, []byte, bool) {
	var head realtime.ServerEvent
	if err := json.Unmarshal(data, &head); err != nil || head.Type != realtime.TypeAudioDelta {
		return media.Frame{}, nil, false
	}
	var ev realtime.AudioDeltaEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return media.Frame{}, nil, false
	}
	pcm, err := ev.DecodeAudio()
	if err != nil {
		return media.Frame{}, nil, false
	}
	summary, err := json.Marshal(audioDeltaSummary{
		Type:       ev.Type,
		EventID:    ev.EventID,
		ResponseID: ev.ResponseID,
		ItemID:     ev.ItemID,
		AudioBytes: len(pcm),
	})
	if err != nil {
		return media.Frame{}, nil, false
	}
	return media.FrameFromBytes(pcm, media.SampleRate24kHz), summary, true
}

func (w *WebSocket) heartbeatLoop(ctx context.Context, closed <-chan struct{}, ping func() error) {
	ticker := time.NewTicker(w.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if err := ping(); err != nil {
				logger.WarnContext(ctx, "realtime websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (w *WebSocket) sendLoop(ctx context.Context, local media.Stream, control *Channel) {
	if local == nil {
		return
	}
	for {
		select {
		case <-control.Closed():
			return
		case f, ok := <-local.Frames():
			if !ok {
				return
			}
			pcm := media.Resample(f, media.SampleRate24kHz).Bytes()
			if err := control.Send(realtime.NewAudioAppend(pcm)); err != nil {
				logger.DebugContext(ctx, "failed to send local audio", "error", err)
			}
		}
	}
}
