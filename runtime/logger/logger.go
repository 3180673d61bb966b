// Package logger provides structured logging with automatic credential redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Realtime control-channel traffic (inbound and outbound events)
//   - Tool dispatch logging
//   - Automatic API key, ephemeral key and bearer token redaction
//   - Contextual logging with session and turn tracing
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// logOutput is where the built-in handlers write. Tests swap it with SetOutput.
	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger; Configure leaves it alone when present.
	customHandler slog.Handler

	setupMu sync.Mutex
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	DefaultLogger = slog.New(NewContextHandler(newBaseHandler(level, false)))
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error") into
// a slog.Level. Unknown values map to slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newBaseHandler(level slog.Level, useJSON bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if useJSON {
		return slog.NewJSONHandler(logOutput, opts)
	}
	return slog.NewTextHandler(logOutput, opts)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	setupMu.Lock()
	defer setupMu.Unlock()
	if customHandler != nil {
		return
	}
	DefaultLogger = slog.New(NewContextHandler(newBaseHandler(level, false)))
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects the built-in handlers to w and rebuilds the logger at
// the given level. Passing nil restores os.Stderr.
func SetOutput(w io.Writer, level slog.Level) {
	setupMu.Lock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
	setupMu.Unlock()
	SetLevel(level)
}

// SetLogger installs a caller-supplied handler. Context fields are still
// extracted. Passing nil reverts to the built-in text handler.
func SetLogger(h slog.Handler) {
	setupMu.Lock()
	defer setupMu.Unlock()
	customHandler = h
	if h == nil {
		DefaultLogger = slog.New(NewContextHandler(newBaseHandler(slog.LevelInfo, false)))
		return
	}
	DefaultLogger = slog.New(NewContextHandler(h))
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// InboundEvent logs a control-channel message received from the remote endpoint.
func InboundEvent(ctx context.Context, eventType string, size int, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "event_type", eventType, "bytes", size)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "⬇️ Realtime event", allAttrs...)
}

// OutboundEvent logs a control-channel message sent to the remote endpoint.
func OutboundEvent(ctx context.Context, eventType string, attrs ...any) {
	allAttrs := make([]any, 0, 2+len(attrs))
	allAttrs = append(allAttrs, "event_type", eventType)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "⬆️ Realtime event", allAttrs...)
}

// ToolCall logs a tool invocation requested by the remote endpoint.
func ToolCall(ctx context.Context, name, callID string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "tool", name, "call_id", callID)
	allAttrs = append(allAttrs, attrs...)
	InfoContext(ctx, "🔧 Tool call", allAttrs...)
}

// ToolError logs a failed or unknown tool invocation.
func ToolError(ctx context.Context, name, callID string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs, "tool", name, "call_id", callID, "error", err)
	allAttrs = append(allAttrs, attrs...)
	WarnContext(ctx, "❌ Tool call failed", allAttrs...)
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-[a-zA-Z0-9_-]{32,}`),    // OpenAI API keys
		regexp.MustCompile(`ek_[a-zA-Z0-9]{16,}`),      // OpenAI ephemeral client secrets
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),    // Google API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
// Matches keep their first four characters for debugging context; bearer tokens
// collapse to "Bearer [REDACTED]".
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP API request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(service, method, url string, headers map[string]string, body interface{}) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"service", service,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	if len(headers) > 0 {
		redactedHeaders := make(map[string]string, len(headers))
		for key, value := range headers {
			redactedHeaders[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redactedHeaders)
	}

	switch b := body.(type) {
	case nil:
	case string:
		attrs = append(attrs, "body", RedactSensitiveData(b))
	default:
		bodyJSON, err := json.Marshal(b)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(bodyJSON)))
		}
	}

	Debug("🔵 API Request", attrs...)
}

// APIResponse logs HTTP API response details at debug level with automatic redaction.
// Errors are logged at error level regardless of the configured verbosity.
func APIResponse(service string, statusCode int, body string, err error) {
	if err != nil {
		Error("🔴 API Response Error", "service", service, "status_code", statusCode, "error", err.Error())
		return
	}
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 6)
	attrs = append(attrs,
		"service", service,
		"status_code", statusCode,
	)

	var emoji string
	switch {
	case statusCode >= 200 && statusCode < 300:
		emoji = "🟢"
	case statusCode >= 400:
		emoji = "🔴"
	default:
		emoji = "🟡"
	}

	if body != "" {
		var jsonObj interface{}
		if json.Unmarshal([]byte(body), &jsonObj) == nil {
			prettyJSON, _ := json.MarshalIndent(jsonObj, "", "  ")
			attrs = append(attrs, "body", RedactSensitiveData(string(prettyJSON)))
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(body))
		}
	}

	Debug(emoji+" API Response", attrs...)
}
