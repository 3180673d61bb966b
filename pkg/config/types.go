package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// APIVersion is the manifest apiVersion accepted by the loader.
const APIVersion = "voicekit.altairalabs.ai/v1alpha1"

// Manifest kinds.
const (
	KindVoiceSession = "VoiceSession"
	KindTool         = "Tool"
	KindPromptPack   = "PromptPack"
)

// Transport kinds.
const (
	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"
)

// Turn detection modes. TurnDetectionNone leaves turn taking to the client.
const (
	TurnDetectionServerVAD = "server_vad"
	TurnDetectionNone      = "none"
)

// Audio device kinds.
const (
	DevicePortAudio = "portaudio"
	DeviceTone      = "tone"
	DeviceSilence   = "silence"
)

// VoiceSessionConfig is the top-level K8s-style manifest for a session.
type VoiceSessionConfig struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Config            `yaml:"spec"`
}

// Config is the resolved session configuration. Relative file references
// are resolved against ConfigDir by the loader.
type Config struct {
	Realtime      RealtimeConfig      `yaml:"realtime"`
	Issuer        IssuerConfig        `yaml:"issuer"`
	Watchdog      WatchdogConfig      `yaml:"watchdog"`
	Media         MediaConfig         `yaml:"media"`
	Prompt        PromptConfig        `yaml:"prompt"`
	Tools         ToolsConfig         `yaml:"tools"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfigSpec   `yaml:"logging"`

	// ConfigDir is the directory the manifest was loaded from.
	ConfigDir string `yaml:"-"`
}

// RealtimeConfig selects the remote speech endpoint.
type RealtimeConfig struct {
	Transport        string        `yaml:"transport"`
	Endpoint         string        `yaml:"endpoint"`
	WebSocketURL     string        `yaml:"websocketURL"`
	Model            string        `yaml:"model"`
	Voice            string        `yaml:"voice"`
	SignalingTimeout time.Duration `yaml:"signalingTimeout"`
	ICEServers       []string      `yaml:"iceServers,omitempty"`
	// TranscriptionModel transcribes the user's audio; empty disables
	// input transcription.
	TranscriptionModel string `yaml:"transcriptionModel"`
	TurnDetection      string `yaml:"turnDetection"`
}

// IssuerConfig covers both sides of the token exchange: the client fields
// (URL, Avatar) used by a session and the server fields used by the
// issuer command.
type IssuerConfig struct {
	URL    string `yaml:"url"`
	Avatar string `yaml:"avatar"`

	ListenAddr         string            `yaml:"listenAddr"`
	UpstreamURL        string            `yaml:"upstreamURL"`
	APIKeyEnv          string            `yaml:"apiKeyEnv"`
	APIKeyFile         string            `yaml:"apiKeyFile,omitempty"`
	SessionModel       string            `yaml:"sessionModel"`
	TranscriptionModel string            `yaml:"transcriptionModel"`
	Instructions       string            `yaml:"instructions,omitempty"`
	Voices             map[string]string `yaml:"voices,omitempty"`
	DefaultVoice       string            `yaml:"defaultVoice"`
	RatePerMinute      int               `yaml:"ratePerMinute"`
	Burst              int               `yaml:"burst"`
}

// WatchdogConfig parameterises the two-phase inactivity policy.
type WatchdogConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SilentPhase    time.Duration `yaml:"silentPhase"`
	CountdownSteps int           `yaml:"countdownSteps"`
	StepInterval   time.Duration `yaml:"stepInterval"`
}

// MediaConfig selects capture/playback devices and meter cadence.
type MediaConfig struct {
	Device         string        `yaml:"device"`
	SampleRate     int           `yaml:"sampleRate"`
	FrameDuration  time.Duration `yaml:"frameDuration"`
	VolumeInterval time.Duration `yaml:"volumeInterval"`
}

// PromptConfig describes the scenario used to prime the conversation.
type PromptConfig struct {
	Level               string   `yaml:"level"`
	TopicID             string   `yaml:"topicID,omitempty"`
	Topic               string   `yaml:"topic,omitempty"`
	Subtopic            string   `yaml:"subtopic,omitempty"`
	SubtopicDescription string   `yaml:"subtopicDescription,omitempty"`
	CustomTopic         string   `yaml:"customTopic,omitempty"`
	CustomOption        string   `yaml:"customOption,omitempty"`
	Parties             []string `yaml:"parties,omitempty"`
	ShowHints           bool     `yaml:"showHints"`
	PackFile            string   `yaml:"packFile,omitempty"`
	// PackVersion is a semver constraint the pack in PackFile must satisfy.
	PackVersion string `yaml:"packVersion,omitempty"`
}

// ToolsConfig lists tool manifests declared to the remote endpoint.
type ToolsConfig struct {
	Files         []string `yaml:"files,omitempty"`
	MaxConcurrent int64    `yaml:"maxConcurrent"`
}

// CatalogConfig points at the content catalog service.
type CatalogConfig struct {
	URL       string        `yaml:"url"`
	RedisAddr string        `yaml:"redisAddr,omitempty"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

// ObservabilityConfig enables the metrics exporter and tracing.
type ObservabilityConfig struct {
	MetricsAddr  string `yaml:"metricsAddr,omitempty"`
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName"`
}
