package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	settings "github.com/goliatone/go-settings"
)

// FieldDescriptor describes a dotted path in T's defaults and the JSON type
// found there.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Fields lists every leaf path of the defaults, sorted by path.
func (b *Binding[T]) Fields() []FieldDescriptor {
	fields := deriveFieldDescriptors(b.defaults, "")
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "object"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = jsonType(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: jsonType(typed)}}
	}
}

func jsonType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// Trace records where the effective value of a path comes from.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance is one layer's contribution to a traced path. Layers are the
// stored values for a version and the defaults.
type Provenance struct {
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`
	Value   any    `json:"value,omitempty"`
	Found   bool   `json:"found"`
}

// Effective returns the first layer holding the path.
func (t Trace) Effective() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// Trace reports the stored value at the current version and the default for
// path, strongest first. The first segment of path names the property.
func (b *Binding[T]) Trace(ctx context.Context, path string) (Trace, error) {
	segments := strings.Split(path, ".")
	prop, ok := b.property(segments[0])
	if !ok {
		return Trace{}, fmt.Errorf("state: unknown field %q", segments[0])
	}
	version := b.provider.CurrentVersion()
	values, err := b.provider.ReadBatch(ctx, []settings.Property{prop}, version)
	if err != nil {
		return Trace{}, err
	}

	stored := Provenance{Source: "stored", Version: version.String()}
	if value := values[0]; value.IsSet() {
		var decoded any
		if err := json.Unmarshal([]byte(*value.Serialized), &decoded); err != nil {
			return Trace{}, fmt.Errorf("state: stored value for %q at %s: %w", prop.Name, version, err)
		}
		stored.Value, stored.Found = lookupPath(decoded, segments[1:])
	}
	defaults := Provenance{Source: "default"}
	defaults.Value, defaults.Found = lookupPath(b.defaults[prop.Name], segments[1:])

	return Trace{Path: path, Layers: []Provenance{stored, defaults}}, nil
}

func (b *Binding[T]) property(name string) (settings.Property, bool) {
	for _, prop := range b.props {
		if prop.Name == name {
			return prop, true
		}
	}
	return settings.Property{}, false
}

func lookupPath(value any, segments []string) (any, bool) {
	current := value
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
