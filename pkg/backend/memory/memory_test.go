package memory_test

import (
	"context"
	"errors"
	"testing"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/backendtest"
	"github.com/goliatone/go-settings/pkg/backend/memory"
)

func TestBackendContract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) settings.Backend {
		return memory.New()
	})
}

func TestBackendRejectsClosedHandle(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	h, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.OpenHandles() != 1 {
		t.Fatalf("expected one open handle, got %d", b.OpenHandles())
	}
	if err := b.Close(ctx, h); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := b.GetValue(ctx, h, "Theme", settings.MinVersion); !errors.Is(err, settings.ErrClosedHandle) {
		t.Fatalf("expected ErrClosedHandle, got %v", err)
	}
	if err := b.Close(ctx, h); err != nil {
		t.Fatalf("expected double close to be a no-op, got %v", err)
	}
	if b.OpenHandles() != 0 {
		t.Fatalf("expected no open handles, got %d", b.OpenHandles())
	}
}

func TestBackendRejectsForeignHandle(t *testing.T) {
	b := memory.New()
	if err := b.SetValue(context.Background(), "nope", "Theme", settings.MinVersion, "Dark"); !errors.Is(err, settings.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestBackendOpenHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := memory.New().Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSnapshotCopiesData(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	h, _ := b.Open(ctx)
	_ = b.SetValue(ctx, h, "Theme", settings.NewVersion(1, 0, 0, 0), "Dark")
	_ = b.Close(ctx, h)

	snap := b.Snapshot()
	snap["1.0.0.0"]["Theme"] = "changed"
	if b.Snapshot()["1.0.0.0"]["Theme"] != "Dark" {
		t.Fatalf("expected snapshot to be a copy")
	}
}
