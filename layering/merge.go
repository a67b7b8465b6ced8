// Package layering composes settings payloads so that values stored for a
// version override the declared defaults key by key.
package layering

// MergeLayers composes payloads ordered from strongest to weakest. A key present
// in a stronger layer wins, even when its value is nil. Nested objects are
// merged recursively so a stored object keeps fields introduced by newer
// defaults; lists and scalars are replaced wholesale. Inputs are not modified.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return nil
	}
	merged := cloneMap(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMaps(layers[i], merged)
	}
	return merged
}

func mergeMaps(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return cloneMap(weak)
	}
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = cloneAny(value)
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = mergeMaps(strongMap, weakMap)
			continue
		}
		out[key] = cloneAny(value)
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneAny(value)
	}
	return out
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return value
	}
}
