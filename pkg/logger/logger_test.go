package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsArePropagated(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-1")
	ctx = logg.WithGuestSessionID(ctx, "guest_abc_def")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("missing request_id: %v", entry)
	}
	if entry["guest_session_id"] != "guest_abc_def" {
		t.Fatalf("missing guest_session_id: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("missing service field: %v", entry)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "boom", nil)

	if !strings.Contains(buf.String(), "stack") {
		t.Fatal("expected stack field on error logs")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := ParseLevel("DEBUG"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
	if got := ParseLevel("nope"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback for junk, got %s", got)
	}
}
