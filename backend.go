package settings

import (
	"context"
	"errors"
)

var (
	// ErrNotImplemented is returned by backends for operations they do not support.
	ErrNotImplemented = errors.New("settings: not implemented")
	// ErrUnsupported is returned by the Provider when an operation needs a
	// capability the configured backend does not report.
	ErrUnsupported = errors.New("settings: operation not supported by backend")
	// ErrClosedHandle is returned by backends when a released handle is used.
	ErrClosedHandle = errors.New("settings: handle is closed")
	// ErrInvalidHandle is returned by backends given a handle they did not open.
	ErrInvalidHandle = errors.New("settings: invalid handle")
)

// Handle is an opaque, backend-specific store session obtained from Open and
// released by Close. The Provider never shares a handle between operations.
type Handle any

// Backend is the storage capability set the Provider is built on. Values are
// opaque text addressed by (name, version).
type Backend interface {
	// Open acquires a store handle.
	Open(ctx context.Context) (Handle, error)
	// Close releases h. It is idempotent: closing an already released handle
	// returns nil. It must tolerate being called after a failed operation.
	Close(ctx context.Context, h Handle) error
	// GetValue returns the stored value and true, or false when nothing is stored.
	GetValue(ctx context.Context, h Handle, name string, version Version) (string, bool, error)
	// SetValue stores value for (name, version), overwriting any existing value.
	SetValue(ctx context.Context, h Handle, name string, version Version, value string) error
	// ListVersions returns the distinct versions holding at least one value.
	ListVersions(ctx context.Context, h Handle) ([]Version, error)
	// DeleteForVersion removes every value stored for version.
	DeleteForVersion(ctx context.Context, h Handle, version Version) error
}

// Capabilities describes which optional backend features are usable.
type Capabilities struct {
	// Versioning means ListVersions is implemented.
	Versioning bool
	// Cleanup means DeleteForVersion is implemented.
	Cleanup bool
}

// CapabilityReporter is implemented by backends that support only part of the
// Backend contract.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// CapabilitiesOf reports the capabilities of b. Backends that do not implement
// CapabilityReporter are assumed to support everything.
func CapabilitiesOf(b Backend) Capabilities {
	if reporter, ok := b.(CapabilityReporter); ok {
		return reporter.Capabilities()
	}
	return Capabilities{Versioning: true, Cleanup: true}
}

// Unversioned can be embedded by backends that only support reads and writes.
// It provides a no-op Close, rejects ListVersions and DeleteForVersion, and
// reports no optional capabilities.
type Unversioned struct{}

func (Unversioned) Close(context.Context, Handle) error { return nil }

func (Unversioned) ListVersions(context.Context, Handle) ([]Version, error) {
	return nil, ErrNotImplemented
}

func (Unversioned) DeleteForVersion(context.Context, Handle, Version) error {
	return ErrNotImplemented
}

func (Unversioned) Capabilities() Capabilities { return Capabilities{} }
