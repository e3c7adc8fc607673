// Package toolbridge routes function calls announced by the speech
// service to their implementations and shapes the results the model
// reads back. Every call produces a result envelope; failures degrade
// per tool instead of propagating.
package toolbridge

import (
	"context"
	"encoding/json"

	"github.com/soyeahso/parley/internal/realtime"
)

// Result is the JSON envelope returned to the model. It always carries
// a boolean "success" field plus tool-specific payload or an "error"
// string.
type Result map[string]any

// JSON encodes the result for the function output item.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"failed to encode result"}`
	}
	return string(data)
}

// Tool is a capability the model can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() map[string]any

	// Execute runs the tool. It always returns a result envelope,
	// mapping every failure mode to success=false or a degraded
	// success payload.
	Execute(ctx context.Context, args map[string]any) Result
}

// Registry holds available tools.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns wire-ready tool declarations in registration
// order. The session advertises exactly this set to the model.
func (r *Registry) Definitions() []realtime.FunctionTool {
	defs := make([]realtime.FunctionTool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, realtime.FunctionTool{
			Type:        "function",
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
