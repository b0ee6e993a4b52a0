package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SignatureField is removed from every canonical string before signing and
// from inbound payloads before verification.
const SignatureField = "sign"

// BuildOpenPlatformSigningString renders the open-platform canonical string:
// keys sorted ascending by byte order, each entry appended as key immediately
// followed by value with no separator. Null and empty values are skipped.
// The partner's gateway recomputes this exact string, so the construction has
// no room for reinterpretation.
func BuildOpenPlatformSigningString(params map[string]any) (string, error) {
	keys := sortedSignableKeys(params)
	var builder strings.Builder
	for _, key := range keys {
		value, skip, err := formatParamValue(params[key])
		if err != nil {
			return "", invalidParameterError(fmt.Sprintf("core: parameter %q: %s", key, err.Error()))
		}
		if skip {
			continue
		}
		builder.WriteString(key)
		builder.WriteString(value)
	}
	return builder.String(), nil
}

// BuildCustomSigningString renders the custom-convention canonical string:
// keys sorted ascending, entries rendered as key=value and joined by a single
// comma with no spaces. Array values are comma-joined before insertion.
func BuildCustomSigningString(params map[string]any) (string, error) {
	keys := sortedSignableKeys(params)
	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		value, skip, err := formatParamValue(params[key])
		if err != nil {
			return "", invalidParameterError(fmt.Sprintf("core: parameter %q: %s", key, err.Error()))
		}
		if skip {
			continue
		}
		entries = append(entries, key+"="+value)
	}
	return strings.Join(entries, ","), nil
}

// BuildWebhookSigningString reconstructs the canonical string the partner
// signs on pushes: keys sorted ascending, values only (no key names), joined
// by commas. Composite values (the order pushes carry a nested data object)
// are rendered as compact JSON since that is the only deterministic rendering
// both sides can reproduce.
func BuildWebhookSigningString(payload map[string]any) (string, error) {
	keys := sortedSignableKeys(payload)
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		value, skip, err := formatParamValue(payload[key])
		if err != nil {
			encoded, encErr := json.Marshal(payload[key])
			if encErr != nil {
				return "", invalidParameterError(fmt.Sprintf("core: webhook field %q: %s", key, encErr.Error()))
			}
			value, skip = string(encoded), false
		}
		if skip {
			continue
		}
		values = append(values, value)
	}
	return strings.Join(values, ","), nil
}

func sortedSignableKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == SignatureField {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// formatParamValue stringifies a parameter for canonicalization and for the
// outgoing request. skip reports values the partner treats as absent (nil or
// empty after rendering). Nested structures inside arrays are rejected: the
// caller must pre-flatten them.
func formatParamValue(value any) (rendered string, skip bool, err error) {
	if value == nil {
		return "", true, nil
	}
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", true, nil
		}
		return v, false, nil
	case bool:
		return strconv.FormatBool(v), false, nil
	case int:
		return strconv.FormatInt(int64(v), 10), false, nil
	case int8:
		return strconv.FormatInt(int64(v), 10), false, nil
	case int16:
		return strconv.FormatInt(int64(v), 10), false, nil
	case int32:
		return strconv.FormatInt(int64(v), 10), false, nil
	case int64:
		return strconv.FormatInt(v, 10), false, nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), false, nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), false, nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), false, nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), false, nil
	case uint64:
		return strconv.FormatUint(v, 10), false, nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), false, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), false, nil
	case json.Number:
		return v.String(), false, nil
	case []string:
		if len(v) == 0 {
			return "", true, nil
		}
		return strings.Join(v, ","), false, nil
	case []any:
		return formatArrayValue(v)
	default:
		return "", false, fmt.Errorf("unsupported value type %T", value)
	}
}

func formatArrayValue(values []any) (string, bool, error) {
	if len(values) == 0 {
		return "", true, nil
	}
	parts := make([]string, 0, len(values))
	for _, element := range values {
		switch element.(type) {
		case map[string]any, []any, []string:
			return "", false, fmt.Errorf("nested structure in array value must be pre-flattened")
		}
		rendered, skip, err := formatParamValue(element)
		if err != nil {
			return "", false, err
		}
		if skip {
			rendered = ""
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, ","), false, nil
}
