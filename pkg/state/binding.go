package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/hydrate"
	"github.com/goliatone/go-settings/layering"
)

var ErrNotObject = errors.New("state: settings type must encode to a JSON object")

// Validator is implemented by settings types that check their own invariants.
// Mutate refuses to save a value that fails validation.
type Validator interface {
	Validate() error
}

// Mutator edits a loaded value in place.
type Mutator[T any] func(*T) error

// BindOption configures a Binding.
type BindOption[T any] func(*Binding[T])

// WithDomain names the binding in decode errors.
func WithDomain[T any](domain string) BindOption[T] {
	return func(b *Binding[T]) {
		b.domain = domain
	}
}

// WithDecoderOptions customises how layered payloads are hydrated.
func WithDecoderOptions[T any](opts ...hydrate.DecoderOption[T]) BindOption[T] {
	return func(b *Binding[T]) {
		b.decoderOpts = append(b.decoderOpts, opts...)
	}
}

// Binding maps T onto provider properties.
type Binding[T any] struct {
	provider    *settings.Provider
	domain      string
	defaults    map[string]any
	props       []settings.Property
	decoderOpts []hydrate.DecoderOption[T]
	decoder     *hydrate.Decoder[T]
}

// Bind derives properties from defaults and returns a Binding over provider.
func Bind[T any](provider *settings.Provider, defaults T, opts ...BindOption[T]) (*Binding[T], error) {
	if provider == nil {
		return nil, fmt.Errorf("state: provider is required")
	}
	b := &Binding[T]{provider: provider, domain: "settings"}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	payload, err := encodeFields(defaults)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names)

	b.defaults = make(map[string]any, len(payload))
	b.props = make([]settings.Property, 0, len(names))
	for _, name := range names {
		raw := payload[name]
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("state: default for %q: %w", name, err)
		}
		b.defaults[name] = value
		b.props = append(b.props, settings.Property{Name: name, Default: string(raw)})
	}
	b.decoder = hydrate.NewDecoder[T](b.decoderOpts...)
	return b, nil
}

// Properties returns the properties derived from T, sorted by name.
func (b *Binding[T]) Properties() []settings.Property {
	return append([]settings.Property(nil), b.props...)
}

// Load returns the settings for the current version.
func (b *Binding[T]) Load(ctx context.Context) (T, error) {
	return b.LoadVersion(ctx, b.provider.CurrentVersion())
}

// LoadVersion returns the settings stored for version, layered over the
// defaults.
func (b *Binding[T]) LoadVersion(ctx context.Context, version settings.Version) (T, error) {
	var zero T
	values, err := b.provider.ReadBatch(ctx, b.props, version)
	if err != nil {
		return zero, err
	}
	return b.hydrate(values, version)
}

// Previous returns the settings stored for the previous version. found is
// false when no earlier version holds data.
func (b *Binding[T]) Previous(ctx context.Context) (value T, found bool, err error) {
	prev, found, err := b.provider.PreviousVersion(ctx)
	if err != nil || !found {
		return value, false, err
	}
	value, err = b.LoadVersion(ctx, prev)
	return value, err == nil, err
}

// Save writes the fields of value that differ from what is stored for the
// current version.
func (b *Binding[T]) Save(ctx context.Context, value T) error {
	current, err := b.provider.Load(ctx, b.props)
	if err != nil {
		return err
	}
	dirty, err := b.diff(current, value)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}
	return b.provider.Save(ctx, dirty)
}

// Mutate loads the current settings, applies fn, validates the result when T
// implements Validator and saves it.
func (b *Binding[T]) Mutate(ctx context.Context, fn Mutator[T]) (T, error) {
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("state: mutator is required")
	}
	current, err := b.provider.Load(ctx, b.props)
	if err != nil {
		return zero, err
	}
	value, err := b.hydrate(current, b.provider.CurrentVersion())
	if err != nil {
		return zero, err
	}
	if err := fn(&value); err != nil {
		return zero, err
	}
	if err := validate(&value); err != nil {
		return zero, err
	}
	dirty, err := b.diff(current, value)
	if err != nil {
		return zero, err
	}
	if len(dirty) > 0 {
		if err := b.provider.Save(ctx, dirty); err != nil {
			return zero, err
		}
	}
	return value, nil
}

// Upgrade migrates every field of T from the previous version.
func (b *Binding[T]) Upgrade(ctx context.Context, opts ...settings.UpgradeOption) (settings.UpgradeReport, error) {
	return b.provider.Upgrade(ctx, b.props, opts...)
}

func (b *Binding[T]) hydrate(values settings.Values, version settings.Version) (T, error) {
	var zero T
	stored := make(map[string]any, len(values))
	for _, value := range values {
		if !value.IsSet() {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(*value.Serialized), &decoded); err != nil {
			return zero, fmt.Errorf("state: stored value for %q at %s: %w", value.Property.Name, version, err)
		}
		stored[value.Property.Name] = decoded
	}
	payload := layering.MergeLayers(stored, b.defaults)
	if payload == nil {
		payload = map[string]any{}
	}
	return b.decoder.Decode(hydrate.Context{Domain: b.domain, Version: version.String()}, payload)
}

// diff returns the values to write so that the store reflects next. Fields
// that are unstored and still equal their default are left alone.
func (b *Binding[T]) diff(current settings.Values, next T) (settings.Values, error) {
	encoded, err := encodeFields(next)
	if err != nil {
		return nil, err
	}
	var dirty settings.Values
	for _, value := range current {
		raw, ok := encoded[value.Property.Name]
		if !ok {
			continue
		}
		serialized := string(raw)
		if value.IsSet() {
			if *value.Serialized == serialized {
				continue
			}
		} else if serialized == value.Property.Default {
			continue
		}
		value.Set(serialized)
		dirty = append(dirty, value)
	}
	return dirty, nil
}

func encodeFields(value any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("state: encode settings: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	out := make(map[string]json.RawMessage, len(fields))
	for name, field := range fields {
		compact, err := compactJSON(field)
		if err != nil {
			return nil, err
		}
		out[name] = compact
	}
	return out, nil
}

func compactJSON(raw json.RawMessage) (json.RawMessage, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}

func validate[T any](value *T) error {
	if v, ok := any(*value).(Validator); ok {
		return v.Validate()
	}
	if v, ok := any(value).(Validator); ok {
		return v.Validate()
	}
	return nil
}
