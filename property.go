package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrPropertyNameRequired indicates a property without a name.
	ErrPropertyNameRequired = errors.New("settings: property name must be provided")
	// ErrDuplicateProperty indicates a batch naming the same property twice.
	ErrDuplicateProperty = errors.New("settings: property names must be unique")
)

// Property describes one persisted setting as declared by the host.
type Property struct {
	Name    string
	Default string
}

// Value pairs a property with its serialized form. A nil Serialized means no
// value is stored, which is distinct from an empty string.
type Value struct {
	Property   Property
	Serialized *string
	Dirty      bool
}

// NewValue returns a dirty value holding serialized.
func NewValue(property Property, serialized string) Value {
	return Value{Property: property, Serialized: &serialized, Dirty: true}
}

// IsSet reports whether a serialized value is present.
func (v Value) IsSet() bool {
	return v.Serialized != nil
}

// String returns the serialized value, or the property default when absent.
func (v Value) String() string {
	if v.Serialized == nil {
		return v.Property.Default
	}
	return *v.Serialized
}

// Set stores serialized and marks the value dirty.
func (v *Value) Set(serialized string) {
	v.Serialized = &serialized
	v.Dirty = true
}

// Unset clears the serialized value. Unset values are never written.
func (v *Value) Unset() {
	v.Serialized = nil
	v.Dirty = true
}

// Values is an ordered batch of values.
type Values []Value

// Lookup returns the value for name.
func (vs Values) Lookup(name string) (Value, bool) {
	for _, v := range vs {
		if v.Property.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

// Names returns property names in batch order.
func (vs Values) Names() []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Property.Name
	}
	return names
}

// Dirty returns the values that would be written by WriteBatch.
func (vs Values) Dirty() Values {
	out := make(Values, 0, len(vs))
	for _, v := range vs {
		if v.Dirty && v.Serialized != nil {
			out = append(out, v)
		}
	}
	return out
}

// Map returns the values keyed by property name.
func (vs Values) Map() map[string]Value {
	out := make(map[string]Value, len(vs))
	for _, v := range vs {
		out[v.Property.Name] = v
	}
	return out
}

func validateProperties(props []Property) error {
	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		if p.Name == "" {
			return ErrPropertyNameRequired
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

func propertiesOf(values Values) []Property {
	props := make([]Property, len(values))
	for i, v := range values {
		props[i] = v.Property
	}
	return props
}
