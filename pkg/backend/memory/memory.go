// Package memory provides an in-memory settings backend for tests, examples
// and hosts that do not need persistence.
package memory

import (
	"context"
	"sync"

	settings "github.com/goliatone/go-settings"
)

// Backend keeps values in process memory keyed by version then name. Handles
// are tokens; data is shared across handles.
type Backend struct {
	mu      sync.RWMutex
	values  map[settings.Version]map[string]string
	handles map[*handle]struct{}
	nextID  uint64
}

type handle struct {
	id uint64
}

var _ settings.Backend = (*Backend)(nil)

// New returns an empty Backend.
func New() *Backend {
	return &Backend{
		values:  map[settings.Version]map[string]string{},
		handles: map[*handle]struct{}{},
	}
}

func (b *Backend) Open(ctx context.Context) (settings.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	h := &handle{id: b.nextID}
	b.handles[h] = struct{}{}
	return h, nil
}

func (b *Backend) Close(_ context.Context, h settings.Handle) error {
	typed, ok := h.(*handle)
	if !ok {
		return settings.ErrInvalidHandle
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, typed)
	return nil
}

func (b *Backend) GetValue(_ context.Context, h settings.Handle, name string, version settings.Version) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(h); err != nil {
		return "", false, err
	}
	value, ok := b.values[version][name]
	return value, ok, nil
}

func (b *Backend) SetValue(_ context.Context, h settings.Handle, name string, version settings.Version, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(h); err != nil {
		return err
	}
	bucket, ok := b.values[version]
	if !ok {
		bucket = map[string]string{}
		b.values[version] = bucket
	}
	bucket[name] = value
	return nil
}

func (b *Backend) ListVersions(_ context.Context, h settings.Handle) ([]settings.Version, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(h); err != nil {
		return nil, err
	}
	versions := make([]settings.Version, 0, len(b.values))
	for version, bucket := range b.values {
		if len(bucket) == 0 {
			continue
		}
		versions = append(versions, version)
	}
	return settings.SortVersions(versions), nil
}

func (b *Backend) DeleteForVersion(_ context.Context, h settings.Handle, version settings.Version) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(h); err != nil {
		return err
	}
	delete(b.values, version)
	return nil
}

// OpenHandles reports how many handles are currently open.
func (b *Backend) OpenHandles() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handles)
}

// Snapshot returns a copy of everything stored, keyed by version string.
func (b *Backend) Snapshot() map[string]map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]map[string]string, len(b.values))
	for version, bucket := range b.values {
		if len(bucket) == 0 {
			continue
		}
		copied := make(map[string]string, len(bucket))
		for name, value := range bucket {
			copied[name] = value
		}
		out[version.String()] = copied
	}
	return out
}

func (b *Backend) checkLocked(h settings.Handle) error {
	typed, ok := h.(*handle)
	if !ok {
		return settings.ErrInvalidHandle
	}
	if _, open := b.handles[typed]; !open {
		return settings.ErrClosedHandle
	}
	return nil
}
