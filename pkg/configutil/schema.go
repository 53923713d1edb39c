package configutil

import (
	"fmt"
	"sort"
	"strings"
)

// Schema declares the keys a provider settings map may carry. Required keys
// must be present and non-empty; unknown keys are rejected unless
// AllowUnknown is set.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings checks a settings map against its schema before decoding.
// Key comparison is case, underscore, and hyphen insensitive so YAML keys and
// env-derived keys line up.
func ValidateSettings(input map[string]any, schema Schema) error {
	allowed := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		allowed[normalizeKey(k)] = struct{}{}
	}
	for _, k := range schema.Optional {
		allowed[normalizeKey(k)] = struct{}{}
	}

	present := make(map[string]any, len(input))
	var unknown []string
	for k, v := range input {
		nk := normalizeKey(k)
		present[nk] = v
		if _, ok := allowed[nk]; !ok && !schema.AllowUnknown {
			unknown = append(unknown, k)
		}
	}

	var missing []string
	for _, req := range schema.Required {
		v, ok := present[normalizeKey(req)]
		if !ok || isEmptyValue(v) {
			missing = append(missing, req)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown keys: "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("provider settings rejected: %s", strings.Join(parts, "; "))
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
