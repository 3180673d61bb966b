package config

import "time"

// Defaults for the OpenAI Realtime endpoint and the inactivity policy.
const (
	DefaultEndpoint         = "https://api.openai.com/v1/realtime"
	DefaultWebSocketURL     = "wss://api.openai.com/v1/realtime"
	DefaultModel            = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice            = "alloy"
	DefaultSignalingTimeout = 10 * time.Second

	DefaultIssuerURL      = "http://localhost:8787/api/session"
	DefaultIssuerListen   = ":8787"
	DefaultUpstreamURL    = "https://api.openai.com/v1/realtime/sessions"
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultTranscriber    = "whisper-1"
	DefaultRatePerMinute  = 30
	DefaultIssuerBurst    = 5
	DefaultSilentPhase    = 15 * time.Second
	DefaultCountdownSteps = 15
	DefaultStepInterval   = time.Second

	DefaultSampleRate     = 24000
	DefaultFrameDuration  = 20 * time.Millisecond
	DefaultVolumeInterval = 100 * time.Millisecond

	DefaultMaxConcurrentTools = 4
	DefaultCatalogURL         = "http://localhost:3000/api/options"
	DefaultCacheTTL           = 5 * time.Minute
	DefaultServiceName        = "voicekit"
)

// DefaultVoices maps avatar selectors to voices.
func DefaultVoices() map[string]string {
	return map[string]string{
		"jin":  "coral",
		"zhan": "ash",
	}
}

// Defaults returns a fully populated Config.
func Defaults() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			Transport:          TransportWebRTC,
			Endpoint:           DefaultEndpoint,
			WebSocketURL:       DefaultWebSocketURL,
			Model:              DefaultModel,
			Voice:              DefaultVoice,
			SignalingTimeout:   DefaultSignalingTimeout,
			TranscriptionModel: DefaultTranscriber,
			TurnDetection:      TurnDetectionServerVAD,
		},
		Issuer: IssuerConfig{
			URL:                DefaultIssuerURL,
			ListenAddr:         DefaultIssuerListen,
			UpstreamURL:        DefaultUpstreamURL,
			APIKeyEnv:          DefaultAPIKeyEnv,
			SessionModel:       DefaultModel,
			TranscriptionModel: DefaultTranscriber,
			Instructions:       DefaultPersona,
			Voices:             DefaultVoices(),
			DefaultVoice:       DefaultVoice,
			RatePerMinute:      DefaultRatePerMinute,
			Burst:              DefaultIssuerBurst,
		},
		Watchdog: WatchdogConfig{
			Enabled:        true,
			SilentPhase:    DefaultSilentPhase,
			CountdownSteps: DefaultCountdownSteps,
			StepInterval:   DefaultStepInterval,
		},
		Media: MediaConfig{
			Device:         DevicePortAudio,
			SampleRate:     DefaultSampleRate,
			FrameDuration:  DefaultFrameDuration,
			VolumeInterval: DefaultVolumeInterval,
		},
		Prompt: PromptConfig{
			Level:     "beginner",
			ShowHints: true,
		},
		Tools: ToolsConfig{
			MaxConcurrent: DefaultMaxConcurrentTools,
		},
		Catalog: CatalogConfig{
			URL:      DefaultCatalogURL,
			CacheTTL: DefaultCacheTTL,
		},
		Observability: ObservabilityConfig{
			ServiceName: DefaultServiceName,
		},
		Logging: DefaultLoggingConfig(),
	}
}
