// -----------------------------------------------------------------------
// Parameter Validator - Normalizes and validates raw input maps
// -----------------------------------------------------------------------

package workflow

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
)

// Field bounds enforced by the validator.
const (
	SubjectMinLength   = 3
	SubjectMaxLength   = 500
	AuthorityMaxLength = 200
	MaxResultsFloor    = 1
	MaxResultsCeiling  = 1000

	// DefaultQuery is the sentinel used when no query can be synthesized
	// from subject and theme.
	DefaultQuery = "algemeen"
)

// ValidationResult is the outcome of parameter validation. Params is only
// populated when Valid is true.
type ValidationResult struct {
	Valid  bool                   `json:"valid"`
	Errors []string               `json:"errors,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ParamValidator normalizes and validates raw input maps before they reach
// an action: first deprecated field names are mapped forward, then
// field-level constraints are enforced. All failures are accumulated; the
// caller sees every problem at once.
type ParamValidator struct {
	deprecated map[string]string // old name -> new name
	required   []string
	logger     arbor.ILogger
}

// NewParamValidator creates a validator with the given deprecated-name remap
// pairs and required fields.
func NewParamValidator(deprecated map[string]string, required []string, logger arbor.ILogger) *ParamValidator {
	if deprecated == nil {
		deprecated = make(map[string]string)
	}
	return &ParamValidator{
		deprecated: deprecated,
		required:   required,
		logger:     logger,
	}
}

// Validate runs the two passes in order: deprecated-name remap, then
// required/shape validation. The input map is not mutated.
func (v *ParamValidator) Validate(raw map[string]interface{}) ValidationResult {
	params := make(map[string]interface{}, len(raw))
	for k, val := range raw {
		params[k] = val
	}

	v.remapDeprecated(params)

	var errs []string

	for _, field := range v.required {
		value, ok := params[field]
		if !ok || isEmptyValue(value) {
			errs = append(errs, fmt.Sprintf("field '%s' is required", field))
		}
	}

	if subject, ok := stringParam(params, "subject"); ok {
		length := len(strings.TrimSpace(subject))
		if length < SubjectMinLength || length > SubjectMaxLength {
			errs = append(errs, fmt.Sprintf("field 'subject' must be between %d and %d characters, got %d",
				SubjectMinLength, SubjectMaxLength, length))
		}
	}

	if authority, ok := stringParam(params, "authority"); ok {
		if length := len(strings.TrimSpace(authority)); length > AuthorityMaxLength {
			errs = append(errs, fmt.Sprintf("field 'authority' must be at most %d characters, got %d",
				AuthorityMaxLength, length))
		}
	}

	if value, present := params["max_results"]; present {
		num, ok := toFloat(value)
		if !ok {
			errs = append(errs, fmt.Sprintf("field 'max_results' must be a number, got %T", value))
		} else if num < MaxResultsFloor || num > MaxResultsCeiling {
			errs = append(errs, fmt.Sprintf("field 'max_results' must be between %d and %d, got %v",
				MaxResultsFloor, MaxResultsCeiling, num))
		}
	}

	v.synthesizeQuery(params)

	if len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}
	return ValidationResult{Valid: true, Params: params}
}

// remapDeprecated copies each deprecated field to its new name when the new
// name is absent, deletes the old key, and logs a deprecation warning.
func (v *ParamValidator) remapDeprecated(params map[string]interface{}) {
	for oldName, newName := range v.deprecated {
		value, ok := params[oldName]
		if !ok {
			continue
		}
		if _, exists := params[newName]; !exists {
			params[newName] = value
		}
		delete(params, oldName)

		v.logger.Warn().
			Str("deprecated_field", oldName).
			Str("replacement", newName).
			Msg("Deprecated parameter name used - mapped forward")
	}
}

// synthesizeQuery builds a query string from the subject and theme free-text
// fields when no explicit query is supplied, defaulting to the sentinel when
// both are empty.
func (v *ParamValidator) synthesizeQuery(params map[string]interface{}) {
	if query, ok := stringParam(params, "query"); ok && strings.TrimSpace(query) != "" {
		return
	}

	var parts []string
	if subject, ok := stringParam(params, "subject"); ok {
		if s := strings.TrimSpace(subject); s != "" {
			parts = append(parts, s)
		}
	}
	if theme, ok := stringParam(params, "theme"); ok {
		if s := strings.TrimSpace(theme); s != "" {
			parts = append(parts, s)
		}
	}

	if len(parts) == 0 {
		params["query"] = DefaultQuery
		return
	}
	params["query"] = strings.Join(parts, " ")
}

func stringParam(params map[string]interface{}, key string) (string, bool) {
	value, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
