package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPayload marks a record that cannot be serialized. Its message
// classifies as a permanent failure.
var ErrInvalidPayload = errors.New("invalid payload")

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// fields wraps a record's Data with typed, forgiving accessors.
type fields map[string]any

func (f fields) has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// first returns the first non-nil value among keys.
func (f fields) first(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (f fields) str(keys ...string) string {
	v, ok := f.first(keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func (f fields) requireStr(keys ...string) (string, error) {
	s := f.str(keys...)
	if s == "" {
		return "", invalid("%s is required", keys[0])
	}
	return s, nil
}

// optStr returns nil for a missing or blank value so the key serializes as null.
func (f fields) optStr(keys ...string) any {
	if s := f.str(keys...); s != "" {
		return s
	}
	return nil
}

func (f fields) integer(key string) (int, bool, error) {
	v, ok := f.first(key)
	if !ok {
		return 0, false, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, true, invalid("%s: %v", key, err)
	}
	return n, true, nil
}

func (f fields) intOr(key string, def int) (int, error) {
	n, ok, err := f.integer(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return n, nil
}

func (f fields) requireInt(key string) (int, error) {
	n, ok, err := f.integer(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, invalid("%s is required", key)
	}
	return n, nil
}

func (f fields) boolOr(key string, def bool) (bool, error) {
	v, ok := f.first(key)
	if !ok {
		return def, nil
	}
	b, err := toBool(v)
	if err != nil {
		return false, invalid("%s: %v", key, err)
	}
	return b, nil
}

func (f fields) float(key string) (float64, error) {
	v, ok := f.first(key)
	if !ok {
		return 0, nil
	}
	x, err := toFloat(v)
	if err != nil {
		return 0, invalid("%s: %v", key, err)
	}
	return x, nil
}

func (f fields) timeValue(key string) (time.Time, bool, error) {
	v, ok := f.first(key)
	if !ok {
		return time.Time{}, false, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return time.Time{}, false, nil
	}
	t, err := toTime(v)
	if err != nil {
		return time.Time{}, true, invalid("%s: %v", key, err)
	}
	return t, true, nil
}

// date normalizes a date-ish value to YYYY-MM-DD, or nil if absent.
func (f fields) date(key string) (any, error) {
	t, ok, err := f.timeValue(key)
	if err != nil || !ok {
		return nil, err
	}
	return t.Format(dateLayout), nil
}

// timestamp normalizes a time-ish value to RFC 3339 UTC with milliseconds, or nil if absent.
func (f fields) timestamp(key string) (any, error) {
	t, ok, err := f.timeValue(key)
	if err != nil || !ok {
		return nil, err
	}
	return formatTimestamp(t), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		return 0, fmt.Errorf("%q is not a number", n)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", b)
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	default:
		return false, fmt.Errorf("unsupported boolean type %T", v)
	}
}

// toTime accepts time.Time, RFC 3339 strings, bare dates, and unix milliseconds.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, errors.New("nil time")
		}
		return *t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout} {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("%q is not a date", t)
	default:
		ms, err := toInt(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported time value %v", v)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
}

// oneOf validates an enum field, lower-casing the value.
func oneOf(field, value string, allowed ...string) (string, error) {
	v := strings.ToLower(value)
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", invalid("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}
