package settings_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/memory"
)

var (
	theme  = settings.Property{Name: "Theme", Default: "Light"}
	locale = settings.Property{Name: "Locale", Default: "en"}
	volume = settings.Property{Name: "Volume", Default: "5"}

	errBoom = errors.New("boom")
)

func v(s string) settings.Version {
	return settings.MustParseVersion(s)
}

func newProvider(t *testing.T, backend settings.Backend, version string, opts ...settings.Option) *settings.Provider {
	t.Helper()
	opts = append([]settings.Option{settings.WithCurrentVersion(v(version))}, opts...)
	p, err := settings.New(backend, opts...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

// seed writes name=value pairs at version directly through the backend.
func seed(t *testing.T, backend settings.Backend, version string, pairs ...string) {
	t.Helper()
	ctx := context.Background()
	h, err := backend.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = backend.Close(ctx, h) }()
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := backend.SetValue(ctx, h, pairs[i], v(version), pairs[i+1]); err != nil {
			t.Fatalf("seed %s: %v", pairs[i], err)
		}
	}
}

// faultyBackend wraps the memory backend, failing the named call and counting
// opens, closes, writes and deletes.
type faultyBackend struct {
	*memory.Backend

	mu       sync.Mutex
	failOn   map[string]error
	opens    int
	closes   int
	setCalls []string
	deletes  []settings.Version
}

func newFaultyBackend() *faultyBackend {
	return &faultyBackend{Backend: memory.New(), failOn: map[string]error{}}
}

func (b *faultyBackend) fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOn[op] = err
}

func (b *faultyBackend) err(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failOn[op]
}

func (b *faultyBackend) Open(ctx context.Context) (settings.Handle, error) {
	if err := b.err("open"); err != nil {
		return nil, err
	}
	h, err := b.Backend.Open(ctx)
	if err == nil {
		b.mu.Lock()
		b.opens++
		b.mu.Unlock()
	}
	return h, err
}

func (b *faultyBackend) Close(ctx context.Context, h settings.Handle) error {
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	if err := b.Backend.Close(ctx, h); err != nil {
		return err
	}
	return b.err("close")
}

func (b *faultyBackend) GetValue(ctx context.Context, h settings.Handle, name string, version settings.Version) (string, bool, error) {
	if err := b.err("get"); err != nil {
		return "", false, err
	}
	return b.Backend.GetValue(ctx, h, name, version)
}

func (b *faultyBackend) SetValue(ctx context.Context, h settings.Handle, name string, version settings.Version, value string) error {
	if err := b.err("set"); err != nil {
		return err
	}
	b.mu.Lock()
	b.setCalls = append(b.setCalls, name)
	b.mu.Unlock()
	return b.Backend.SetValue(ctx, h, name, version, value)
}

func (b *faultyBackend) ListVersions(ctx context.Context, h settings.Handle) ([]settings.Version, error) {
	if err := b.err("list"); err != nil {
		return nil, err
	}
	return b.Backend.ListVersions(ctx, h)
}

func (b *faultyBackend) DeleteForVersion(ctx context.Context, h settings.Handle, version settings.Version) error {
	if err := b.err("delete"); err != nil {
		return err
	}
	b.mu.Lock()
	b.deletes = append(b.deletes, version)
	b.mu.Unlock()
	return b.Backend.DeleteForVersion(ctx, h, version)
}

// forgetCalls clears the recorded writes and deletes, keeping the stored data.
func (b *faultyBackend) forgetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setCalls = nil
	b.deletes = nil
}

func (b *faultyBackend) untouched(t *testing.T) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.setCalls) != 0 || len(b.deletes) != 0 {
		t.Fatalf("expected no writes or deletes, got sets=%v deletes=%v", b.setCalls, b.deletes)
	}
}

func (b *faultyBackend) balanced(t *testing.T) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opens != b.closes {
		t.Fatalf("expected every opened handle closed, opens=%d closes=%d", b.opens, b.closes)
	}
	if open := b.Backend.OpenHandles(); open != 0 {
		t.Fatalf("expected no open handles, got %d", open)
	}
}

// readOnlyBackend supports only reads and writes.
type readOnlyBackend struct {
	settings.Unversioned
	values map[string]string
}

func newReadOnlyBackend() *readOnlyBackend {
	return &readOnlyBackend{values: map[string]string{}}
}

func (b *readOnlyBackend) Open(context.Context) (settings.Handle, error) { return b, nil }

func (b *readOnlyBackend) GetValue(_ context.Context, _ settings.Handle, name string, version settings.Version) (string, bool, error) {
	value, ok := b.values[version.String()+"/"+name]
	return value, ok, nil
}

func (b *readOnlyBackend) SetValue(_ context.Context, _ settings.Handle, name string, version settings.Version, value string) error {
	b.values[version.String()+"/"+name] = value
	return nil
}
