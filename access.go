package settings

import (
	"context"
	"time"
)

// ReadBatch reads every property at version. Properties with nothing stored
// come back unset and clean, so they are not written back by WriteBatch until
// the caller changes them.
func (p *Provider) ReadBatch(ctx context.Context, props []Property, version Version) (values Values, err error) {
	start := time.Now()
	defer func() {
		p.logOperation(LogEvent{Operation: "read", Version: version, Properties: len(props), Err: err}, start)
	}()

	if err := validateProperties(props); err != nil {
		return nil, err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		var readErr error
		values, readErr = p.readBatch(ctx, h, props, version)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// WriteBatch writes every dirty value with a serialized form at version.
// Clean and unset values are skipped.
func (p *Provider) WriteBatch(ctx context.Context, values Values, version Version) (err error) {
	start := time.Now()
	var written []string
	defer func() {
		p.logOperation(LogEvent{Operation: "write", Version: version, Properties: len(values), Written: len(written), Err: err}, start)
	}()

	if err := validateProperties(propertiesOf(values)); err != nil {
		return err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		var writeErr error
		written, writeErr = p.writeBatch(ctx, h, values, version)
		return writeErr
	})
	if err != nil {
		return err
	}
	p.emitSaved(ctx, version, written)
	return nil
}

// Load reads props at the current version.
func (p *Provider) Load(ctx context.Context, props []Property) (Values, error) {
	return p.ReadBatch(ctx, props, p.current)
}

// Save writes dirty values at the current version.
func (p *Provider) Save(ctx context.Context, values Values) error {
	return p.WriteBatch(ctx, values, p.current)
}

func (p *Provider) readBatch(ctx context.Context, h Handle, props []Property, version Version) (Values, error) {
	values := make(Values, 0, len(props))
	for _, prop := range props {
		value, err := p.readValue(ctx, h, prop, version)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func (p *Provider) readValue(ctx context.Context, h Handle, prop Property, version Version) (Value, error) {
	raw, ok, err := p.backend.GetValue(ctx, h, prop.Name, version)
	if err != nil {
		return Value{}, backendError("get", prop.Name, &version, err)
	}
	value := Value{Property: prop}
	if ok {
		value.Serialized = &raw
	}
	return value, nil
}

func (p *Provider) writeBatch(ctx context.Context, h Handle, values Values, version Version) ([]string, error) {
	var written []string
	for _, value := range values {
		if !value.Dirty || value.Serialized == nil {
			continue
		}
		if err := p.writeValue(ctx, h, value.Property.Name, version, *value.Serialized); err != nil {
			return written, err
		}
		written = append(written, value.Property.Name)
	}
	return written, nil
}

func (p *Provider) writeValue(ctx context.Context, h Handle, name string, version Version, serialized string) error {
	if err := p.backend.SetValue(ctx, h, name, version, serialized); err != nil {
		return backendError("set", name, &version, err)
	}
	return nil
}
