package logging

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	l, err := New("warn", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Named("test").Info("dropped below warn")
}

func TestSecretRedacts(t *testing.T) {
	if f := Secret("api_key", "sk-123"); f.String != "[REDACTED]" {
		t.Fatalf("expected redaction, got %q", f.String)
	}
	if f := Secret("api_key", ""); f.String != "" {
		t.Fatalf("expected empty marker for missing key, got %q", f.String)
	}
}
