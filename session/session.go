package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by GetSession for unknown or expired ids.
var ErrNotFound = errors.New("session not found")

// Role values used on Items.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Item types used on Items.
const (
	TypeMessage    = "message"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeHandoff    = "handoff"
)

// Item is one persisted conversation turn.
type Item struct {
	Role       string    `json:"role"`
	Agent      string    `json:"agent,omitempty"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Arguments  string    `json:"arguments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store interface for session management
type Store interface {
	// EnsureSession returns the live session for id, refreshing its ttl, or
	// creates a new one when id is empty or unknown.
	EnsureSession(ctx context.Context, id string, ttl time.Duration) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	Close() error
}

// Session interface for conversation operations
type Session interface {
	ID() string
	AddItems(ctx context.Context, items ...Item) error
	Items(ctx context.Context) ([]Item, error)
	History(ctx context.Context) ([]string, error)
}

// FormatItem renders an item as "role(agent): content". Tool calls render
// their name and arguments.
func FormatItem(it Item) string {
	who := it.Role
	if it.Agent != "" {
		who = fmt.Sprintf("%s(%s)", it.Role, it.Agent)
	}
	switch it.Type {
	case TypeToolCall:
		return fmt.Sprintf("%s: called %s %s", who, it.ToolName, it.Arguments)
	case TypeToolResult:
		return fmt.Sprintf("%s: %s returned %s", who, it.ToolName, it.Content)
	default:
		return fmt.Sprintf("%s: %s", who, it.Content)
	}
}

// FormatHistory renders items in order.
func FormatHistory(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, FormatItem(it))
	}
	return out
}
