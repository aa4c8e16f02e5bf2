package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestComponentIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentApp).WithComponent(ComponentLedger)
	l.Info("hello", FieldRevision, 3)

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=ledger") {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "revision=3") {
		t.Fatalf("missing field: %s", out)
	}
}

func TestContextCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentHTTP)

	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatal("logger not found in context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}

func TestLogTransactionRecorded(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewText(&buf, slog.LevelInfo, ComponentApp))
	sl.LogTransactionRecorded(context.Background(), OpCreate, 7, 1250, "expense", "Food", -1250, 2)

	out := buf.String()
	for _, want := range []string{"transaction_id=7", "amount_cents=1250", "category=Food", "balance_cents=-1250", "operation=create"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=ledger") {
		t.Fatalf("component not replaced: %s", out)
	}
}

func TestWithKeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentHTTP).With(FieldRequestID, "r1")
	if l.Component() != ComponentHTTP {
		t.Fatalf("Component() = %q", l.Component())
	}
	NewStructuredLogger(l).LogError(context.Background(), "boom", errors.New("bad"), ComponentTemplate, OpRender, nil)

	out := buf.String()
	for _, want := range []string{"request_id=r1", "component=template", "error=bad", "operation=render"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
