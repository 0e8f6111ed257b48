package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("session opened", "session_id", "s1")

	out := buf.String()
	if !strings.Contains(out, "session opened") || !strings.Contains(out, "session_id=s1") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNew_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf)).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	New(WithWriter(&buf), WithDebug(true)).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true)).Info("step", "planet", 42)

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if parsed["msg"] != "step" {
		t.Errorf("expected msg=step, got %v", parsed["msg"])
	}
	if parsed["planet"] != float64(42) {
		t.Errorf("expected planet=42, got %v", parsed["planet"])
	}
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("pretty output")
	if !strings.Contains(buf.String(), "pretty output") {
		t.Fatalf("expected message, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	if l.Handler().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger must be disabled")
	}
	l.With("k", "v").WithGroup("g").Info("ignored")
}
