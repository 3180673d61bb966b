package logger

import (
	"log/slog"
	"strings"
	"sync"
)

// ModuleConfig holds per-module log levels. Module names are dotted package
// paths relative to the VoiceKit module root ("runtime.session",
// "runtime.transport"); a level set on a parent applies to every child that
// has no level of its own.
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	modules      map[string]slog.Level
}

// NewModuleConfig creates a new ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		modules:      make(map[string]slog.Level),
	}
}

// SetModuleLevel sets the log level for a specific module.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[module] = level
}

// SetDefaultLevel sets the level used when no module entry matches.
func (m *ModuleConfig) SetDefaultLevel(level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLevel = level
}

// LevelFor returns the level for module, walking up the dotted hierarchy
// until an explicit entry is found.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for module != "" {
		if level, ok := m.modules[module]; ok {
			return level
		}
		lastDot := strings.LastIndex(module, ".")
		if lastDot == -1 {
			break
		}
		module = module[:lastDot]
	}
	return m.defaultLevel
}

// minLevel returns the most verbose level configured anywhere. Handlers use
// it as their base threshold so module overrides below the default still pass.
func (m *ModuleConfig) minLevel() slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowest := m.defaultLevel
	for _, l := range m.modules {
		if l < lowest {
			lowest = l
		}
	}
	return lowest
}

func (m *ModuleConfig) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modules)
}

var globalModuleConfig = NewModuleConfig(slog.LevelInfo)

// LoggingConfigSpec is the logger-side view of the logging section of a
// VoiceSession manifest. pkg/config converts into it to avoid an import cycle.
type LoggingConfigSpec struct {
	DefaultLevel string
	Format       string // "json" or "text"
	CommonFields map[string]string
	Modules      []ModuleLoggingSpec
}

// ModuleLoggingSpec configures logging for a specific module.
type ModuleLoggingSpec struct {
	Name  string
	Level string
}

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Configure applies cfg to the global logger. A handler installed with
// SetLogger takes precedence and is left untouched.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil {
		return nil
	}

	setupMu.Lock()
	defer setupMu.Unlock()
	if customHandler != nil {
		return nil
	}

	defaultLevel := slog.LevelInfo
	if cfg.DefaultLevel != "" {
		defaultLevel = ParseLevel(cfg.DefaultLevel)
	}

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	moduleConfig := NewModuleConfig(defaultLevel)
	for _, mod := range cfg.Modules {
		moduleConfig.SetModuleLevel(mod.Name, ParseLevel(mod.Level))
	}
	globalModuleConfig = moduleConfig

	var handler slog.Handler
	if moduleConfig.len() > 0 {
		base := newBaseHandler(moduleConfig.minLevel(), cfg.Format == FormatJSON)
		handler = NewModuleHandler(base, moduleConfig, commonFields...)
	} else {
		handler = NewContextHandler(newBaseHandler(defaultLevel, cfg.Format == FormatJSON), commonFields...)
	}

	DefaultLogger = slog.New(handler)
	return nil
}

// GetModuleConfig returns the global module configuration.
func GetModuleConfig() *ModuleConfig {
	return globalModuleConfig
}
