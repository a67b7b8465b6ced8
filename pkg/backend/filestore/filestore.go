// Package filestore persists settings in a single YAML or TOML document laid
// out as version -> name -> value.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
)

// Format selects the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for paths whose extension maps to no Format.
var ErrUnknownFormat = errors.New("filestore: unknown document format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Backend reads the document on Open and, when anything changed, replaces it
// atomically on Close. Handles are exclusive: Open waits until the previous
// handle is closed.
type Backend struct {
	path   string
	format Format
	perm   os.FileMode
	sem    chan struct{}
}

// Option configures a Backend.
type Option func(*Backend)

// WithFormat overrides the format derived from the path.
func WithFormat(format Format) Option {
	return func(b *Backend) {
		b.format = format
	}
}

// WithPermissions sets the file mode used when the document is written.
func WithPermissions(perm os.FileMode) Option {
	return func(b *Backend) {
		b.perm = perm
	}
}

var _ settings.Backend = (*Backend)(nil)

// New returns a Backend over the document at path. The file is created on the
// first write.
func New(path string, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("filestore: path is required")
	}
	b := &Backend{path: path, perm: 0o600, sem: make(chan struct{}, 1)}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.format == "" {
		format, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		b.format = format
	}
	if b.format != FormatYAML && b.format != FormatTOML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, b.format)
	}
	return b, nil
}

// Path returns the document location.
func (b *Backend) Path() string {
	return b.path
}

type document map[string]map[string]string

type session struct {
	doc    document
	dirty  bool
	closed bool
}

func (b *Backend) Open(ctx context.Context) (settings.Handle, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	doc, err := b.load()
	if err != nil {
		<-b.sem
		return nil, err
	}
	return &session{doc: doc}, nil
}

func (b *Backend) Close(_ context.Context, h settings.Handle) error {
	s, ok := h.(*session)
	if !ok || s == nil {
		return settings.ErrInvalidHandle
	}
	if s.closed {
		return nil
	}
	s.closed = true
	defer func() { <-b.sem }()
	if !s.dirty {
		return nil
	}
	return b.store(s.doc)
}

func (b *Backend) GetValue(_ context.Context, h settings.Handle, name string, version settings.Version) (string, bool, error) {
	s, err := sessionOf(h)
	if err != nil {
		return "", false, err
	}
	value, ok := s.doc[version.String()][name]
	return value, ok, nil
}

func (b *Backend) SetValue(_ context.Context, h settings.Handle, name string, version settings.Version, value string) error {
	s, err := sessionOf(h)
	if err != nil {
		return err
	}
	key := version.String()
	bucket, ok := s.doc[key]
	if !ok {
		bucket = map[string]string{}
		s.doc[key] = bucket
	}
	if current, exists := bucket[name]; exists && current == value {
		return nil
	}
	bucket[name] = value
	s.dirty = true
	return nil
}

func (b *Backend) ListVersions(_ context.Context, h settings.Handle) ([]settings.Version, error) {
	s, err := sessionOf(h)
	if err != nil {
		return nil, err
	}
	versions := make([]settings.Version, 0, len(s.doc))
	for key, bucket := range s.doc {
		if len(bucket) == 0 {
			continue
		}
		version, err := settings.ParseVersion(key)
		if err != nil {
			return nil, fmt.Errorf("filestore: %s: %w", b.path, err)
		}
		versions = append(versions, version)
	}
	return settings.SortVersions(versions), nil
}

func (b *Backend) DeleteForVersion(_ context.Context, h settings.Handle, version settings.Version) error {
	s, err := sessionOf(h)
	if err != nil {
		return err
	}
	key := version.String()
	if _, ok := s.doc[key]; !ok {
		return nil
	}
	delete(s.doc, key)
	s.dirty = true
	return nil
}

func sessionOf(h settings.Handle) (*session, error) {
	s, ok := h.(*session)
	if !ok || s == nil {
		return nil, settings.ErrInvalidHandle
	}
	if s.closed {
		return nil, settings.ErrClosedHandle
	}
	return s, nil
}

func (b *Backend) load() (document, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", b.path, err)
	}
	doc := document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	switch b.format {
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", b.path, err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

func (b *Backend) store(doc document) error {
	var (
		data []byte
		err  error
	)
	switch b.format {
	case FormatTOML:
		data, err = toml.Marshal(doc)
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", b.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("filestore: create directory: %w", err)
	}
	if err := renameio.WriteFile(b.path, data, b.perm); err != nil {
		return fmt.Errorf("filestore: write %s: %w", b.path, err)
	}
	return nil
}
