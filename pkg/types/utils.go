package types

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MatchPattern reports whether text matches a shell-style glob pattern
// (supporting * and ?) or, failing that, a plain regular expression.
func MatchPattern(pattern, text string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if pattern == text {
		return true
	}
	if strings.ContainsAny(pattern, "*?") {
		regexPattern := regexp.QuoteMeta(pattern)
		regexPattern = strings.ReplaceAll(regexPattern, "\\*", ".*")
		regexPattern = strings.ReplaceAll(regexPattern, "\\?", ".")
		regexPattern = "^" + regexPattern + "$"
		matched, err := regexp.MatchString(regexPattern, text)
		return err == nil && matched
	}
	matched, err := regexp.MatchString("^"+pattern+"$", text)
	return err == nil && matched
}

// ConvertToString converts a value to its string representation.
func ConvertToString(value interface{}) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ConvertToBool applies Ansible-style truthy coercion: true|yes|1|on -> true,
// false|no|0|off|"" -> false, else Python-style truthiness.
func ConvertToBool(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true
		case "false", "no", "off", "0", "":
			return false
		default:
			return v != ""
		}
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0
	case float32, float64:
		return reflect.ValueOf(v).Float() != 0.0
	case []interface{}:
		return len(v) != 0
	case map[string]interface{}:
		return len(v) != 0
	default:
		return true
	}
}

// ConvertToInt converts a value to int.
func ConvertToInt(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// MergeStringMaps merges multiple string maps, later maps taking precedence.
func MergeStringMaps(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// MergeInterfaceMaps merges multiple maps shallowly, later maps win.
func MergeInterfaceMaps(maps ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// DeepMergeInterfaceMaps recursively merges override onto base: nested
// maps are merged key-by-key rather than replaced wholesale. This is the
// explicit layered-map primitive used everywhere variable precedence is
// computed (spec §9 DESIGN NOTES).
func DeepMergeInterfaceMaps(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if existing, ok := result[k]; ok {
			if existingMap, ok := existing.(map[string]interface{}); ok {
				if overrideMap, ok := v.(map[string]interface{}); ok {
					result[k] = DeepMergeInterfaceMaps(existingMap, overrideMap)
					continue
				}
			}
		}
		result[k] = v
	}
	return result
}

// LayeredVars merges a list of variable sources in ascending precedence
// (the first source is lowest precedence, the last wins). This makes
// precedence inspectable: callers pass sources in the documented order
// (role defaults, group "all", other groups, host vars, extra-vars, ...)
// instead of repeated in-place dict updates.
func LayeredVars(layers ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, layer := range layers {
		result = DeepMergeInterfaceMaps(result, layer)
	}
	return result
}

// ValidateRequiredFields checks that every required key is present.
func ValidateRequiredFields(args map[string]interface{}, required []string) error {
	for _, field := range required {
		if _, exists := args[field]; !exists {
			return NewValidationError(field, nil, "required field is missing")
		}
	}
	return nil
}

// ValidateFieldTypes checks declared field types against args.
func ValidateFieldTypes(args map[string]interface{}, fieldTypes map[string]string) error {
	for field, expectedType := range fieldTypes {
		value, exists := args[field]
		if !exists {
			continue
		}
		actualType := reflect.TypeOf(value).Kind().String()
		switch expectedType {
		case "string":
			if actualType != "string" {
				return NewValidationError(field, value, fmt.Sprintf("expected string, got %s", actualType))
			}
		case "int":
			if actualType != "int" && actualType != "int64" && actualType != "float64" {
				return NewValidationError(field, value, fmt.Sprintf("expected int, got %s", actualType))
			}
		case "bool":
			if actualType != "bool" {
				return NewValidationError(field, value, fmt.Sprintf("expected bool, got %s", actualType))
			}
		case "slice":
			if actualType != "slice" {
				return NewValidationError(field, value, fmt.Sprintf("expected slice, got %s", actualType))
			}
		case "map":
			if actualType != "map" {
				return NewValidationError(field, value, fmt.Sprintf("expected map, got %s", actualType))
			}
		}
	}
	return nil
}

// SanitizePath strips path-traversal segments and normalizes separators.
func SanitizePath(path string) string {
	path = strings.ReplaceAll(path, "../", "")
	path = strings.ReplaceAll(path, "..\\", "")
	path = strings.ReplaceAll(path, "\\", "/")
	re := regexp.MustCompile(`/+`)
	path = re.ReplaceAllString(path, "/")
	return strings.TrimSpace(path)
}

// StringSliceContains reports whether slice contains item.
func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// UniqueStrings removes duplicates, preserving first-seen order.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// SplitLines splits command output into its constituent lines the way
// Ansible's stdout_lines/stderr_lines registration does: empty input
// yields an empty (not nil) slice, and a single trailing newline does
// not produce a spurious trailing empty element.
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// GetCurrentTime returns the current time. Kept as a seam so tests can
// stub clock behavior without reaching into time.Now call sites directly.
func GetCurrentTime() time.Time {
	return time.Now()
}
