package settings

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendRequired is returned when a Provider is built without a backend.
var ErrBackendRequired = errors.New("settings: backend is required")

// BackendError records which backend operation failed. It unwraps to the
// backend's own error so errors.Is and errors.As see the original failure.
type BackendError struct {
	Op      string
	Name    string
	Version *Version
	Err     error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("settings: backend ")
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " name=%q", e.Name)
	}
	if e.Version != nil {
		fmt.Fprintf(&b, " version=%s", e.Version)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func backendError(op, name string, version *Version, err error) error {
	if err == nil {
		return nil
	}
	var existing *BackendError
	if errors.As(err, &existing) {
		return err
	}
	if version != nil {
		v := *version
		version = &v
	}
	return &BackendError{Op: op, Name: name, Version: version, Err: err}
}
