package workflow

import (
	"fmt"
	"strings"

	"github.com/ternarybob/praxis/internal/interfaces"
)

// ValidateAgainstSchema applies the default parameter-type validation for
// modules that do not implement their own Validate. All violations for a
// call are collected and joined into one error so a caller sees every
// problem at once, not just the first.
func ValidateAgainstSchema(schema map[string]interfaces.ParamSpec, params map[string]interface{}) error {
	var violations []string

	for field, spec := range schema {
		value, present := params[field]

		if !present || isEmptyValue(value) {
			if spec.Required {
				violations = append(violations, fmt.Sprintf("field '%s' is required", field))
			}
			continue
		}

		switch spec.Type {
		case interfaces.ParamTypeString:
			if _, ok := value.(string); !ok {
				violations = append(violations, fmt.Sprintf("field '%s' must be a string, got %T", field, value))
			}
		case interfaces.ParamTypeNumber:
			num, ok := toFloat(value)
			if !ok {
				violations = append(violations, fmt.Sprintf("field '%s' must be a number, got %T", field, value))
				continue
			}
			if spec.Min != nil && num < *spec.Min {
				violations = append(violations, fmt.Sprintf("field '%s' must be at least %v, got %v", field, *spec.Min, num))
			}
			if spec.Max != nil && num > *spec.Max {
				violations = append(violations, fmt.Sprintf("field '%s' must be at most %v, got %v", field, *spec.Max, num))
			}
		case interfaces.ParamTypeBoolean:
			if _, ok := value.(bool); !ok {
				violations = append(violations, fmt.Sprintf("field '%s' must be a boolean, got %T", field, value))
			}
		case interfaces.ParamTypeArray:
			if !isArrayValue(value) {
				violations = append(violations, fmt.Sprintf("field '%s' must be an array, got %T", field, value))
			}
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("parameter validation failed: %s", strings.Join(violations, "; "))
	}
	return nil
}

// isEmptyValue treats blank strings the same as missing values for
// required-field checks.
func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// toFloat accepts the numeric shapes that survive JSON round-trips.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func isArrayValue(value interface{}) bool {
	switch value.(type) {
	case []interface{}, []string, []float64, []int:
		return true
	default:
		return false
	}
}
