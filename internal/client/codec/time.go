package codec

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/tidwall/gjson"
)

// TimestampLayout is the wire format of action timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

var zonedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05Z0700"}

var naiveLayouts = []string{TimestampLayout, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}

// FormatTimestamp renders t in UTC with second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO 8601 timestamp. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range zonedLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	var lastErr error
	for _, l := range naiveLayouts {
		t, err := time.ParseInLocation(l, s, time.UTC)
		if err == nil {
			return t.Truncate(time.Second), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func decodeTime(r gjson.Result, path ...string) (time.Time, error) {
	switch r.Type {
	case gjson.String:
		t, err := ParseTimestamp(r.Str)
		if err != nil {
			return time.Time{}, common.NewDecodeError("invalid timestamp "+r.Raw, path...)
		}
		return t, nil
	case gjson.Number:
		n, err := intValue(r, path...)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0).UTC(), nil
	default:
		return time.Time{}, common.NewDecodeError("expected timestamp, got "+typeName(r), path...)
	}
}
