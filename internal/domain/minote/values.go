package minote

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// AsString renders scalar JSON values as strings. Numbers decoded with
// UseNumber keep their exact digits, which matters for 64-bit note ids.
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func AsInt64(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return int64(f)
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return i
	default:
		return 0
	}
}

func AsAnySlice(v any) []any {
	if v == nil {
		return nil
	}
	if out, ok := v.([]any); ok {
		return out
	}
	return nil
}

// MillisTime converts a millisecond epoch timestamp. Values that look like
// seconds are accepted too. Zero yields the zero time.
func MillisTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	if ms < 100_000_000_000 && ms > -100_000_000_000 {
		return time.Unix(ms, 0)
	}
	return time.UnixMilli(ms)
}

// FirstTime returns the first non-zero time among the millisecond values.
func FirstTime(values ...int64) time.Time {
	for _, v := range values {
		if t := MillisTime(v); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
