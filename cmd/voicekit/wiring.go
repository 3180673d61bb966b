package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/catalog"
	"github.com/AltairaLabs/VoiceKit/runtime/credentials"
	"github.com/AltairaLabs/VoiceKit/runtime/events"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/media"
	metrics "github.com/AltairaLabs/VoiceKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/telemetry"
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/transport"
	"github.com/AltairaLabs/VoiceKit/runtime/watchdog"
)

const shutdownTimeout = 5 * time.Second

func newSource(cfg config.MediaConfig) (media.Source, error) {
	switch cfg.Device {
	case config.DevicePortAudio:
		return media.NewDeviceSource(cfg.SampleRate, cfg.FrameDuration), nil
	case config.DeviceTone:
		return media.ToneSource{
			Frequency:     440,
			Amplitude:     0.2,
			SampleRate:    cfg.SampleRate,
			FrameDuration: cfg.FrameDuration,
		}, nil
	case config.DeviceSilence:
		return media.SilenceSource{SampleRate: cfg.SampleRate, FrameDuration: cfg.FrameDuration}, nil
	default:
		return nil, fmt.Errorf("unknown audio device %q", cfg.Device)
	}
}

// newSink opens the speaker for the portaudio device and discards audio
// otherwise.
func newSink(cfg config.MediaConfig) (media.Sink, error) {
	if cfg.Device != config.DevicePortAudio {
		return &media.DiscardSink{}, nil
	}
	return media.NewDeviceSink(cfg.SampleRate, cfg.FrameDuration)
}

func newTransport(cfg config.RealtimeConfig) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportWebRTC:
		return transport.NewWebRTC(transport.WebRTCConfig{
			Endpoint:         cfg.Endpoint,
			Model:            cfg.Model,
			Voice:            cfg.Voice,
			ICEServers:       cfg.ICEServers,
			SignalingTimeout: cfg.SignalingTimeout,
		})
	case config.TransportWebSocket:
		return transport.NewWebSocket(transport.WebSocketConfig{
			URL:   cfg.WebSocketURL,
			Model: cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// newSessionConfig is the session.update sent when a session opens. Tools
// are added by the session controller.
func newSessionConfig(cfg config.RealtimeConfig) realtime.SessionConfig {
	sc := realtime.SessionConfig{Voice: cfg.Voice}
	if cfg.TranscriptionModel != "" {
		sc.InputAudioTranscription = &realtime.TranscriptionConfig{Model: cfg.TranscriptionModel}
	}
	if cfg.TurnDetection != "" && cfg.TurnDetection != config.TurnDetectionNone {
		sc.TurnDetection = &realtime.TurnDetectionConfig{Type: cfg.TurnDetection}
	}
	return sc
}

// newIssuer returns the credential source for a session. WebRTC sessions
// need an ephemeral secret from the token issuer; the WebSocket transport
// authenticates with the API key directly.
func newIssuer(cfg *config.Config) (credentials.Issuer, error) {
	if cfg.Realtime.Transport != config.TransportWebSocket {
		return credentials.NewHTTPIssuer(cfg.Issuer.URL), nil
	}
	cred, err := credentials.Resolve(credentials.ResolverConfig{
		KeyFile:   cfg.Issuer.APIKeyFile,
		KeyEnv:    cfg.Issuer.APIKeyEnv,
		ConfigDir: cfg.ConfigDir,
	})
	if err != nil {
		return nil, err
	}
	return credentials.StaticIssuer{Token: credentials.Token{Value: cred.APIKey(), Voice: cfg.Realtime.Voice}}, nil
}

// newTools builds the per-session registry: declared manifests plus the
// built-in tools. hints receives showHints suggestions.
func newTools(cfg *config.Config, hints func([]string)) (*tools.Registry, error) {
	r := tools.NewRegistry(tools.WithMaxConcurrent(cfg.Tools.MaxConcurrent))
	if err := r.LoadDescriptors(cfg.Tools.Files...); err != nil {
		return nil, err
	}
	if !cfg.Prompt.ShowHints {
		hints = nil
	}
	if err := tools.RegisterBuiltins(r, hints); err != nil {
		return nil, err
	}
	return r, nil
}

func newPolicy(cfg config.WatchdogConfig) watchdog.Policy {
	if !cfg.Enabled {
		return nil
	}
	return watchdog.TwoPhase(cfg.SilentPhase, cfg.CountdownSteps, cfg.StepInterval)
}

// newCatalog returns the catalog client, fronted by a Redis cache when an
// address is configured. The returned close function releases the cache
// connection.
func newCatalog(cfg config.CatalogConfig) (catalog.Catalog, func() error, error) {
	client := catalog.NewClient(cfg.URL)
	if cfg.RedisAddr == "" {
		return client, func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return catalog.NewCache(client, rdb, catalog.WithTTL(cfg.CacheTTL)), rdb.Close, nil
}

// observability wires the event bus to metrics and tracing.
type observability struct {
	bus      *events.EventBus
	exporter *metrics.Exporter
	tracing  *telemetry.OTelEventListener
	shutdown func(context.Context) error
}

func startObservability(ctx context.Context, cfg config.ObservabilityConfig) (*observability, error) {
	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	o := &observability{bus: events.NewEventBus(), shutdown: shutdown}
	o.bus.SubscribeAll(metrics.NewMetricsListener().Handle)
	o.tracing = telemetry.NewOTelEventListener(telemetry.Tracer(nil))
	o.bus.SubscribeAll(o.tracing.OnEvent)

	if cfg.MetricsAddr != "" {
		o.exporter = metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			if err := o.exporter.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics exporter stopped", "error", err)
			}
		}()
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
	}
	return o, nil
}

func (o *observability) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	o.bus.Close()
	if o.exporter != nil {
		if err := o.exporter.Shutdown(ctx); err != nil {
			logger.Warn("metrics exporter shutdown failed", "error", err)
		}
	}
	if err := o.shutdown(ctx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
}
