package state_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-settings/pkg/backend/memory"
	"github.com/goliatone/go-settings/pkg/state"
)

func TestFieldsDescribeDefaults(t *testing.T) {
	b, err := state.Bind(newProvider(t, memory.New(), "1.0"), displayDefaults)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	want := []state.FieldDescriptor{
		{Path: "font_size", Type: "number"},
		{Path: "panels.minimap", Type: "boolean"},
		{Path: "panels.sidebar", Type: "boolean"},
		{Path: "recent", Type: "null"},
		{Path: "theme", Type: "string"},
	}
	if diff := cmp.Diff(want, b.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceReportsStoredAndDefault(t *testing.T) {
	ctx := context.Background()
	b, err := state.Bind(newProvider(t, memory.New(), "1.0"), displayDefaults)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	next := displayDefaults
	next.Panels.Minimap = true
	if err := b.Save(ctx, next); err != nil {
		t.Fatalf("save: %v", err)
	}

	trace, err := b.Trace(ctx, "panels.minimap")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	want := state.Trace{
		Path: "panels.minimap",
		Layers: []state.Provenance{
			{Source: "stored", Version: "1.0.0.0", Value: true, Found: true},
			{Source: "default", Value: false, Found: true},
		},
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	effective, ok := trace.Effective()
	if !ok || effective.Source != "stored" {
		t.Fatalf("expected stored layer effective, got %+v", effective)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["path"] != "panels.minimap" {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestTraceFallsBackToDefault(t *testing.T) {
	b, err := state.Bind(newProvider(t, memory.New(), "1.0"), displayDefaults)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	trace, err := b.Trace(context.Background(), "theme")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	effective, ok := trace.Effective()
	if !ok || effective.Source != "default" || effective.Value != "light" {
		t.Fatalf("expected default theme, got %+v", effective)
	}
	if trace.Layers[0].Found {
		t.Fatalf("expected nothing stored, got %+v", trace.Layers[0])
	}

	if _, err := b.Trace(context.Background(), "missing.field"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
