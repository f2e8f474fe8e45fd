package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Settings is the opaque key/value map attached to automations and steps.
// Values usually come from JSON, so numbers arrive as float64 or json.Number.
type Settings map[string]any

// Int returns the integer stored under key. Numeric strings are accepted.
func (s Settings) Int(key string) (int64, bool) {
	value, ok := s[key]
	if !ok || value == nil {
		return 0, false
	}

	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true //nolint:gosec // step settings never reach the overflow range
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}

		return i, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}

		return i, true
	default:
		return 0, false
	}
}

// String returns the string stored under key.
func (s Settings) String(key string) (string, bool) {
	value, ok := s[key].(string)

	return value, ok
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}

	return int64(f), true
}
