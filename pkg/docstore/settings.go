package docstore

import (
	"fmt"
	"time"
)

// StringSetting reads a string setting. Missing keys return def; required
// settings pass an empty def and check the result.
func StringSetting(settings map[string]any, key, def string) (string, error) {
	v, ok := settings[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("setting %s: expected string, got %T", key, v)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// IntSetting reads an integer setting. Numbers decoded from JSON or YAML
// arrive as float64 or int and are both accepted.
func IntSetting(settings map[string]any, key string, def int) (int, error) {
	v, ok := settings[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64: // JSON numbers are float64
		return int(n), nil
	default:
		return 0, fmt.Errorf("setting %s: expected number, got %T", key, v)
	}
}

// DurationSetting reads a duration given as time.Duration or as a string
// such as "10s".
func DurationSetting(settings map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := settings[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		if d == 0 {
			return def, nil
		}
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("setting %s: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("setting %s: expected duration, got %T", key, v)
	}
}
