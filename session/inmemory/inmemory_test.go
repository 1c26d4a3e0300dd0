package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/conflictcast/session"
)

func TestEnsureSessionReuse(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()
	sess, err := store.EnsureSession(ctx, "", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if sess.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if err := sess.AddItems(ctx, session.Item{Role: session.RoleUser, Type: session.TypeMessage, Content: "India vs Pakistan"}); err != nil {
		t.Fatalf("AddItems: %v", err)
	}
	again, err := store.EnsureSession(ctx, sess.ID(), time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession existing: %v", err)
	}
	items, _ := again.Items(ctx)
	if len(items) != 1 {
		t.Fatalf("expected reused session to keep items, got %d", len(items))
	}
}

func TestEnsureSessionKeepsCallerID(t *testing.T) {
	store := NewInMemorySessionStore()
	sess, err := store.EnsureSession(context.Background(), "api-42", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if sess.ID() != "api-42" {
		t.Fatalf("expected caller id, got %s", sess.ID())
	}
}

func TestGetSessionExpired(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, _ := store.EnsureSession(ctx, "", time.Minute)
	if _, err := store.GetSession(ctx, sess.ID()); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.GetSession(ctx, sess.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryFormatting(t *testing.T) {
	ctx := context.Background()
	sess, _ := NewInMemorySessionStore().EnsureSession(ctx, "", 0)
	_ = sess.AddItems(ctx,
		session.Item{Role: session.RoleUser, Type: session.TypeMessage, Content: "France and Spain"},
		session.Item{Role: session.RoleAssistant, Agent: "Prediction Agent", Type: session.TypeToolCall, ToolName: "military_data_agent", Arguments: `{"input":"France"}`},
		session.Item{Role: session.RoleTool, Type: session.TypeToolResult, ToolName: "military_data_agent", Content: "ok"},
	)
	got, err := sess.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []string{
		"user: France and Spain",
		`assistant(Prediction Agent): called military_data_agent {"input":"France"}`,
		"tool: military_data_agent returned ok",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d = %q, want %q", i, got[i], want[i])
		}
	}
}
