package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/memory"
)

func TestZerologLoggerWritesOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := settings.NewZerologLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	backend := memory.New()
	seed(t, backend, "1.0", "Theme", "Dark")
	p := newProvider(t, backend, "2.0", settings.WithLogger(logger))
	if _, err := p.Upgrade(context.Background(), []settings.Property{theme}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]any{
		"level":      "debug",
		"op":         "upgrade",
		"version":    "2.0.0.0",
		"previous":   "1.0.0.0",
		"properties": float64(1),
		"written":    float64(1),
		"message":    "settings operation",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("expected %s=%v, got %v (entry %v)", key, value, entry[key], entry)
		}
	}
}

func TestZerologLoggerUsesErrorLevelForFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := settings.NewZerologLogger(zerolog.New(&buf))

	backend := newFaultyBackend()
	backend.fail("open", errBoom)
	p := newProvider(t, backend, "1.0", settings.WithLogger(logger))
	if _, err := p.Load(context.Background(), []settings.Property{theme}); err == nil {
		t.Fatalf("expected load to fail")
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "error" || entry["op"] != "read" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if msg, _ := entry["error"].(string); !strings.Contains(msg, "boom") {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
}

func TestNilLoggerFallsBackToNoop(t *testing.T) {
	p := newProvider(t, memory.New(), "1.0", settings.WithLogger(nil), settings.WithEvaluatorLogger(nil))
	if err := p.Save(context.Background(), settings.Values{settings.NewValue(theme, "Dark")}); err != nil {
		t.Fatalf("save: %v", err)
	}
}
