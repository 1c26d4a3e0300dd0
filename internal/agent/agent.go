// Package agent runs prompt-bound agents against chat models, executing the
// tool calls and hand-offs the models request.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Tool is a function the model may call.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(ctx context.Context, arguments json.RawMessage) (string, error)
}

// Agent is an instruction set bound to a model route.
type Agent struct {
	Name         string
	Instructions string
	// Route is "provider:model".
	Route       string
	Temperature *float64
	Tools       []Tool
	Handoffs    []*Agent
	// HandoffParameters is the argument schema of the transfer tool that
	// hands control to this agent. Nil means no arguments.
	HandoffParameters map[string]any
}

// HandoffToolName is the tool name offered for a transfer to a.
func HandoffToolName(a *Agent) string {
	return "transfer_to_" + snake(a.Name)
}

func snake(s string) string {
	var b strings.Builder
	var prev rune
	sep := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && !sep && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			sep = false
		case !sep:
			b.WriteByte('_')
			sep = true
		}
		prev = r
	}
	return strings.TrimRight(b.String(), "_")
}

// FunctionTool adapts a plain function to Tool.
type FunctionTool struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Fn              func(ctx context.Context, arguments json.RawMessage) (string, error)
}

func (f *FunctionTool) Name() string               { return f.ToolName }
func (f *FunctionTool) Description() string        { return f.ToolDescription }
func (f *FunctionTool) Parameters() map[string]any { return f.Schema }
func (f *FunctionTool) Call(ctx context.Context, arguments json.RawMessage) (string, error) {
	return f.Fn(ctx, arguments)
}

// ObjectSchema builds an object schema of string properties.
func ObjectSchema(props map[string]string, required ...string) map[string]any {
	p := make(map[string]any, len(props))
	for name, desc := range props {
		p[name] = map[string]any{"type": "string", "description": desc}
	}
	s := map[string]any{"type": "object", "properties": p}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// StringArg extracts a string field from a tool arguments object.
func StringArg(arguments json.RawMessage, field string) (string, error) {
	var m map[string]any
	if len(arguments) == 0 {
		return "", fmt.Errorf("missing %q argument", field)
	}
	if err := json.Unmarshal(arguments, &m); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	v, ok := m[field].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing %q argument", field)
	}
	return v, nil
}
