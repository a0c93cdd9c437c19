package exit

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SanitizeParams converts numeric strings to float64, recursively.
func SanitizeParams(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out, _ := sanitize(v).(map[string]any)
	return out
}

func sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitize(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitize(child)
		}
		return out
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return val
		}
		if num, err := strconv.ParseFloat(s, 64); err == nil {
			return num
		}
		return val
	default:
		return val
	}
}

// Number reads a numeric param of any common dynamic type.
func Number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// NumberOr returns params[key] or def when absent.
func NumberOr(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}
	if v, ok := Number(params[key]); ok {
		return v
	}
	return def
}
