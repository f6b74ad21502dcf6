package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawListing is an upstream market record as decoded from JSON.
// Field names and value types vary between records.
type RawListing map[string]any

// String returns the first non-empty trimmed string (or number) under keys.
func (r RawListing) String(keys ...string) (string, bool) {
	for _, key := range keys {
		switch v := r[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

// Number returns the first finite numeric value under keys.
// Numeric strings are accepted.
func (r RawListing) Number(keys ...string) (float64, bool) {
	for _, key := range keys {
		if f, ok := AsNumber(r[key]); ok {
			return f, true
		}
	}
	return 0, false
}

// Bool reports a boolean field and whether it was present.
func (r RawListing) Bool(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// Time returns the first parseable timestamp under keys.
// Accepts RFC3339 strings, plain dates and Unix seconds or milliseconds.
func (r RawListing) Time(keys ...string) (time.Time, bool) {
	for _, key := range keys {
		if t, ok := AsTime(r[key]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// Object returns a nested object field.
func (r RawListing) Object(key string) (RawListing, bool) {
	if m, ok := r[key].(map[string]any); ok {
		return RawListing(m), true
	}
	return nil, false
}

// Objects returns a nested array of objects; non-object entries are skipped.
func (r RawListing) Objects(key string) []RawListing {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]RawListing, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, RawListing(m))
		}
	}
	return out
}

// ID returns the trimmed listing id from id or marketId.
func (r RawListing) ID() string {
	id, _ := r.String("id", "marketId")
	return id
}

// AsNumber converts a JSON value to a finite float.
func AsNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime converts a JSON value to a UTC time.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTime(f), true
		}
	case float64:
		return unixTime(t), true
	}
	return time.Time{}, false
}

// unixTime treats values above 1e12 as milliseconds.
func unixTime(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}
