package models

// Role values for chat messages
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one provider-neutral chat turn.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	// Name is the tool name on RoleTool messages.
	Name string `json:"name,omitempty"`
}

// ToolCall is a function call requested by the model. Arguments is raw JSON.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises a callable function to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionRequest is what an agent sends to a provider.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature *float64
	MaxTokens   int
}

// CompletionResponse is the provider's answer: text, tool calls, or both.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Float is a helper for optional temperatures.
func Float(v float64) *float64 { return &v }
