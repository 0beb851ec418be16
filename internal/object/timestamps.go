package object

import (
	"encoding/json"
	"strconv"
	"time"
)

// Field-name spellings checked, in order, when the source has no metadata
// block of its own.
var (
	createdAtFields = []string{
		"creation_time", "created_time", "created_at", "createdTime",
		"date_created", "dateCreated",
	}
	updatedAtFields = []string{
		"modification_time", "modified_time", "updated_at", "updatedTime",
		"last_modified", "lastModified", "date_modified", "dateModified",
	}
)

// Integer timestamps above this value are taken as milliseconds
// (10_000_000_000 seconds is already year 2286; in milliseconds it is
// early 2001, so anything larger must be ms).
const millisThreshold = 10_000_000_000

// ExtractTimestamp returns the first parseable timestamp among the given
// field names, or nil when none is present.
func ExtractTimestamp(item map[string]any, fieldNames []string) *time.Time {
	for _, field := range fieldNames {
		value, ok := item[field]
		if !ok {
			continue
		}
		if ts := coerceTimestamp(value); ts != nil {
			return ts
		}
	}
	return nil
}

// coerceTimestamp converts an integer (seconds or milliseconds) or string
// (RFC3339, then a generic layout) value to a UTC timestamp.
func coerceTimestamp(value any) *time.Time {
	if n, ok := asInt64(value); ok {
		seconds := n
		if n > millisThreshold {
			seconds = n / 1000
		}
		t := time.Unix(seconds, 0).UTC()
		return &t
	}
	if s, ok := asString(value); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.UTC()
			return &t
		}
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// asString returns the value as a non-empty string.
func asString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// asInt64 returns the value as an integer. JSON decoding yields float64 for
// numbers, so whole floats are accepted.
func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

// asStringOrInt returns string values as-is and integer values rendered in
// base 10, for identity fields that appear in either form.
func asStringOrInt(value any) (string, bool) {
	if s, ok := asString(value); ok {
		return s, true
	}
	if n, ok := asInt64(value); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}
