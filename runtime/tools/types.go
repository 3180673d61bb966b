// Package tools maps server-invoked function calls to local handlers.
//
// A Registry is created per session and injected into the session
// controller. Tools are declared to the remote endpoint through their
// Descriptor and executed asynchronously so the control-channel loop never
// waits on a handler.
package tools

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

// Handler executes one tool call. args is the raw JSON object sent by the
// endpoint; the returned value is JSON-encoded into the function output.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Descriptor declares a tool to the remote endpoint.
type Descriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty" yaml:"parameters,omitempty"` // JSON Schema Draft-07
}

// Definition converts the descriptor into the session.update wire format.
func (d Descriptor) Definition() realtime.ToolDef {
	params := d.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return realtime.ToolDef{
		Type:        "function",
		Name:        d.Name,
		Description: d.Description,
		Parameters:  params,
	}
}

// ToolConfig is a K8s-style tool manifest.
type ToolConfig struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       ToolSpec          `json:"spec" yaml:"spec"`
}

// ToolSpec is the body of a tool manifest.
type ToolSpec struct {
	Description string          `json:"description" yaml:"description"`
	Parameters  json.RawMessage `json:"parameters" yaml:"parameters"`
}

// Call is an inbound invocation request.
type Call struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	CallID    string          `json:"call_id"`
}

// Result is the successful outcome of a Call.
type Result struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output any    `json:"output"`
}
