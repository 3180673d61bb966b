package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Built-in tool names.
const (
	ShowHintsTool      = "showHints"
	CurrentTimeTool    = "getCurrentTime"
	maxHintsPerRequest = 12
)

// ShowHintsDescriptor declares the quick-reply hints tool.
var ShowHintsDescriptor = Descriptor{
	Name:        ShowHintsTool,
	Description: "Display quick reply suggestions the user can pick to continue the conversation.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"hints": {
				"type": "array",
				"items": {"type": "string"},
				"minItems": 1,
				"maxItems": 12,
				"description": "Short replies in the target language."
			}
		},
		"required": ["hints"]
	}`),
}

// CurrentTimeDescriptor declares the local clock tool.
var CurrentTimeDescriptor = Descriptor{
	Name:        CurrentTimeTool,
	Description: "Return the user's current local date and time.",
	Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
}

// NewShowHintsHandler returns a handler that forwards hints to sink.
func NewShowHintsHandler(sink func(hints []string)) Handler {
	return func(_ context.Context, args json.RawMessage) (any, error) {
		var req struct {
			Hints []string `json:"hints"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode hints: %w", err)
		}
		if len(req.Hints) > maxHintsPerRequest {
			req.Hints = req.Hints[:maxHintsPerRequest]
		}
		sink(req.Hints)
		return map[string]any{"success": true, "count": len(req.Hints)}, nil
	}
}

// NewCurrentTimeHandler returns a handler reporting now() in the given
// location. A nil location means time.Local.
func NewCurrentTimeHandler(now func() time.Time, loc *time.Location) Handler {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return func(context.Context, json.RawMessage) (any, error) {
		t := now().In(loc)
		return map[string]any{
			"success":  true,
			"time":     t.Format(time.RFC3339),
			"timezone": loc.String(),
			"message":  "It is " + t.Format("Monday, January 2, 2006 3:04 PM") + ".",
		}, nil
	}
}

// RegisterBuiltins declares and binds the built-in tools. hints may be nil,
// in which case showHints is not registered.
func RegisterBuiltins(r *Registry, hints func([]string)) error {
	if err := r.RegisterTool(CurrentTimeDescriptor, NewCurrentTimeHandler(nil, nil)); err != nil {
		return err
	}
	if hints != nil {
		return r.RegisterTool(ShowHintsDescriptor, NewShowHintsHandler(hints))
	}
	return nil
}
