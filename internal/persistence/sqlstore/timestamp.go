package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is fixed width so stored values sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatNullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

// parseTimestamp is the single place stored timestamps are decoded. It
// accepts time.Time, RFC3339 text as string or []byte, and epoch seconds.
func parseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseTimestampText(v)
	case []byte:
		return parseTimestampText(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("sqlstore: timestamp is null")
	default:
		return time.Time{}, fmt.Errorf("sqlstore: unsupported timestamp type %T", value)
	}
}

// parseNullableTimestamp maps NULL to nil.
func parseNullableTimestamp(value any) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	if text, ok := value.([]byte); ok && len(text) == 0 {
		return nil, nil
	}
	if text, ok := value.(string); ok && text == "" {
		return nil, nil
	}
	parsed, err := parseTimestamp(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseTimestampText(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("sqlstore: empty timestamp")
	}
	if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return parsed.UTC(), nil
	}
	if seconds, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("sqlstore: invalid timestamp %q", text)
}
