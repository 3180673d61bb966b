package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a semantic configuration error that the JSON
// schema cannot express.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config validation error: %s: %s (got: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// Validate checks cross-field constraints and returns every violation joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.Realtime.Transport {
	case TransportWebRTC:
		if err := checkURL("realtime.endpoint", c.Realtime.Endpoint, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	case TransportWebSocket:
		if err := checkURL("realtime.websocketURL", c.Realtime.WebSocketURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, &ValidationError{Field: "realtime.transport", Message: "must be webrtc or websocket", Value: c.Realtime.Transport})
	}
	if c.Realtime.SignalingTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "realtime.signalingTimeout", Message: "must be positive"})
	}
	switch c.Realtime.TurnDetection {
	case "", TurnDetectionServerVAD, TurnDetectionNone:
	default:
		errs = append(errs, &ValidationError{Field: "realtime.turnDetection", Message: "must be server_vad or none", Value: c.Realtime.TurnDetection})
	}

	if c.Watchdog.Enabled {
		if c.Watchdog.SilentPhase <= 0 {
			errs = append(errs, &ValidationError{Field: "watchdog.silentPhase", Message: "must be positive"})
		}
		if c.Watchdog.CountdownSteps > 0 && c.Watchdog.StepInterval <= 0 {
			errs = append(errs, &ValidationError{Field: "watchdog.stepInterval", Message: "must be positive when countdownSteps > 0"})
		}
	}

	if c.Media.VolumeInterval < 10*time.Millisecond {
		errs = append(errs, &ValidationError{Field: "media.volumeInterval", Message: "must be at least 10ms", Value: c.Media.VolumeInterval.String()})
	}
	if c.Tools.MaxConcurrent < 1 {
		errs = append(errs, &ValidationError{Field: "tools.maxConcurrent", Message: "must be at least 1"})
	}
	if c.Prompt.CustomTopic != "" && c.Prompt.TopicID != "" {
		errs = append(errs, &ValidationError{Field: "prompt.customTopic", Message: "cannot be combined with prompt.topicID"})
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute URL", Value: raw}
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: "scheme must be one of " + strings.Join(schemes, ", "), Value: raw}
}
