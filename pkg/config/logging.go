package config

import (
	"fmt"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// LoggingConfigSpec is the logging section of a VoiceSession manifest.
type LoggingConfigSpec struct {
	// DefaultLevel is one of trace, debug, info, warn, error.
	DefaultLevel string `yaml:"defaultLevel,omitempty"`

	// Format is "json" or "text".
	Format string `yaml:"format,omitempty"`

	// CommonFields are added to every log entry.
	CommonFields map[string]string `yaml:"commonFields,omitempty"`

	// Modules overrides the level for dotted module names such as
	// "runtime.router".
	Modules []ModuleLoggingConfig `yaml:"modules,omitempty"`
}

// ModuleLoggingConfig configures logging for a specific module.
type ModuleLoggingConfig struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

// LogLevel constants for programmatic use.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogFormat constants for programmatic use.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// DefaultLoggingConfig returns text output at info level.
func DefaultLoggingConfig() LoggingConfigSpec {
	return LoggingConfigSpec{
		DefaultLevel: LogLevelInfo,
		Format:       LogFormatText,
	}
}

// Validate validates the LoggingConfigSpec.
func (c *LoggingConfigSpec) Validate() error {
	if c.DefaultLevel != "" && !isValidLogLevel(c.DefaultLevel) {
		return &ValidationError{Field: "logging.defaultLevel", Message: "must be one of: trace, debug, info, warn, error", Value: c.DefaultLevel}
	}
	if c.Format != "" && c.Format != LogFormatJSON && c.Format != LogFormatText {
		return &ValidationError{Field: "logging.format", Message: "must be one of: json, text", Value: c.Format}
	}
	for i, mod := range c.Modules {
		if mod.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("logging.modules[%d].name", i), Message: "module name is required"}
		}
		if mod.Level != "" && !isValidLogLevel(mod.Level) {
			return &ValidationError{Field: "logging.modules[" + mod.Name + "].level", Message: "must be one of: trace, debug, info, warn, error", Value: mod.Level}
		}
	}
	return nil
}

// ToLoggerSpec converts to the logger package's view of the section.
func (c *LoggingConfigSpec) ToLoggerSpec() *logger.LoggingConfigSpec {
	out := &logger.LoggingConfigSpec{
		DefaultLevel: c.DefaultLevel,
		Format:       c.Format,
		CommonFields: c.CommonFields,
	}
	for _, m := range c.Modules {
		out.Modules = append(out.Modules, logger.ModuleLoggingSpec{Name: m.Name, Level: m.Level})
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}
