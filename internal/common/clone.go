package common

import (
	"time"
)

// DeepCloneMap creates an independent copy of an open key-value context map.
// Mutating the original after cloning must never change the copy. Handles
// nested maps, slices, and time.Time values recursively. Cyclic graphs are
// not supported; context maps are plain JSON-shaped data.
func DeepCloneMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCloneValue(v)
	}
	return dst
}

func deepCloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return DeepCloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case time.Time:
		return val
	default:
		// Scalars (string, bool, numbers) are copied by value
		return val
	}
}
