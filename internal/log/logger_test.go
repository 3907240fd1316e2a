package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestJSONLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf}).WithComponent(ComponentReceipt)
	l.Info("hello", FieldUserID, "u1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentReceipt || rec[FieldUserID] != "u1" {
		t.Fatalf("unexpected record %v", rec)
	}
	if bytes.Count(buf.Bytes(), []byte(`"component"`)) != 1 {
		t.Fatalf("component logged more than once: %s", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	l := Discard().WithComponent("custom")
	if got := FromContext(NewContext(context.Background(), l)); got.Component() != "custom" {
		t.Fatalf("logger not propagated")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogHTTPEndLevelAndScope(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})
	sl := NewStructuredLogger(base)

	ctx := NewContext(context.Background(), base.With(FieldRequestID, "req_1"))
	r := httptest.NewRequest(http.MethodGet, "/api/report?year=2024", nil)
	sl.LogHTTPEnd(ctx, r, http.StatusNotFound, 12, "10.0.0.1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec[FieldRequestID] != "req_1" || rec[FieldStatusCode] != float64(404) {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec[FieldComponent] != ComponentHTTP || rec[FieldQuery] != "year=2024" {
		t.Fatalf("unexpected record %v", rec)
	}
}
