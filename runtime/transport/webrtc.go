package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/media"
)

// DataChannelLabel is the control channel name the endpoint expects.
const DataChannelLabel = "response"

const (
	pcmuPayloadType = 0
	remoteBuffer    = 128
)

var pcmuCapability = webrtc.RTPCodecCapability{
	MimeType:  webrtc.MimeTypePCMU,
	ClockRate: media.SampleRate8kHz,
	Channels:  1,
}

// WebRTCConfig configures the peer connection transport.
type WebRTCConfig struct {
	Endpoint         string
	Model            string
	Voice            string
	ICEServers       []string
	SignalingTimeout time.Duration
	HTTPClient       *http.Client
}

// WebRTC opens one peer connection with a single audio track and the
// "response" data channel per session.
type WebRTC struct {
	cfg WebRTCConfig
	api *webrtc.API
}

// NewWebRTC prepares a transport that negotiates G.711 µ-law audio.
func NewWebRTC(cfg WebRTCConfig) (*WebRTC, error) {
	if cfg.SignalingTimeout <= 0 {
		cfg.SignalingTimeout = DefaultSignalingTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: pcmuCapability,
		PayloadType:        pcmuPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMU codec: %w", err)
	}
	return &WebRTC{cfg: cfg, api: webrtc.NewAPI(webrtc.WithMediaEngine(m))}, nil
}

// Open performs the offer/answer exchange and returns once the remote
// description is applied. The control channel opens asynchronously. The
// offer is signaled with the credential's voice when it has one.
func (w *WebRTC) Open(ctx context.Context, cred Credential, local media.Stream) (conn *Connection, err error) {
	ctx = logger.WithTransport(ctx, "webrtc")

	pc, err := w.api.NewPeerConnection(webrtc.Configuration{ICEServers: w.iceServers()})
	if err != nil {
		return nil, &ConnectionError{Stage: StageMedia, Cause: err}
	}
	var control *Channel
	defer func() {
		if err != nil {
			if control != nil {
				_ = control.Close()
			}
			_ = pc.Close()
		}
	}()

	track, err := webrtc.NewTrackLocalStaticSample(pcmuCapability, "audio", "voicekit")
	if err != nil {
		return nil, &ConnectionError{Stage: StageMedia, Cause: err}
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		return nil, &ConnectionError{Stage: StageMedia, Cause: err}
	}

	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return nil, &ConnectionError{Stage: StageMedia, Cause: err}
	}
	control = NewChannel(func(data []byte) error {
		return dc.SendText(string(data))
	}, dc.Close)
	dc.OnOpen(func() {
		logger.InfoContext(ctx, "control channel open", "label", dc.Label())
		control.MarkOpen()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		control.Deliver(msg.Data)
	})
	dc.OnClose(func() {
		_ = control.Close()
	})

	remote := make(chan media.Frame, remoteBuffer)
	var readers sync.WaitGroup
	pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logger.DebugContext(ctx, "remote track", "codec", tr.Codec().MimeType)
		readers.Add(1)
		go func() {
			defer readers.Done()
			readRemoteAudio(tr, remote, control.Closed())
		}()
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.DebugContext(ctx, "peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			_ = control.Close()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, &ConnectionError{Stage: StageOffer, Cause: err}
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, &ConnectionError{Stage: StageOffer, Cause: err}
	}

	sigCtx, cancel := context.WithTimeout(ctx, w.cfg.SignalingTimeout)
	defer cancel()
	select {
	case <-gathered:
	case <-sigCtx.Done():
		return nil, &ConnectionError{Stage: StageOffer, Cause: fmt.Errorf("ICE gathering: %w", sigCtx.Err())}
	}

	voice := w.cfg.Voice
	if cred.Voice != "" {
		voice = cred.Voice
	}
	signaler := &Signaler{Endpoint: w.cfg.Endpoint, Model: w.cfg.Model, Voice: voice, Client: w.cfg.HTTPClient}
	answer, err := signaler.Exchange(sigCtx, cred.Secret, pc.LocalDescription().SDP)
	if err != nil {
		return nil, err
	}
	if err = pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return nil, &ConnectionError{Stage: StageAnswer, Cause: err}
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		drainRTCP(sender)
	}()
	go func() {
		defer pumps.Done()
		sendLocalAudio(ctx, track, local, control.Closed())
	}()

	logger.InfoContext(ctx, "peer connection negotiated", "endpoint", w.cfg.Endpoint)
	return NewConnection(control, remote, func() error {
		err := pc.Close()
		pumps.Wait()
		readers.Wait()
		close(remote)
		return err
	}), nil
}

func (w *WebRTC) iceServers() []webrtc.ICEServer {
	if len(w.cfg.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: w.cfg.ICEServers}}
}

// drainRTCP consumes sender reports so interceptors keep working. It
// returns when the sender is closed.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func sendLocalAudio(ctx context.Context, track *webrtc.TrackLocalStaticSample, local media.Stream, closed <-chan struct{}) {
	if local == nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case f, ok := <-local.Frames():
			if !ok {
				return
			}
			narrow := media.Resample(f, media.SampleRate8kHz)
			err := track.WriteSample(pionmedia.Sample{
				Data:     media.EncodeMuLaw(narrow.Samples),
				Duration: narrow.Duration(),
			})
			if err != nil && !errors.Is(err, io.ErrClosedPipe) {
				logger.DebugContext(ctx, "failed to write local audio", "error", err)
			}
		}
	}
}

func readRemoteAudio(tr *webrtc.TrackRemote, out chan<- media.Frame, closed <-chan struct{}) {
	for {
		pkt, _, err := tr.ReadRTP()
		if err != nil {
			return
		}
		f, ok := decodePacket(pkt)
		if !ok {
			continue
		}
		select {
		case out <- f:
		case <-closed:
			return
		default:
		}
	}
}

// decodePacket converts a PCMU RTP packet to PCM.
func decodePacket(pkt *rtp.Packet) (media.Frame, bool) {
	if pkt.PayloadType != pcmuPayloadType || len(pkt.Payload) == 0 {
		return media.Frame{}, false
	}
	return media.Frame{Samples: media.DecodeMuLaw(pkt.Payload), SampleRate: media.SampleRate8kHz}, true
}
