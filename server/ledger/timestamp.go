package ledger

import (
	"strings"
	"time"
)

// TimestampLayout is how the ledger writes wall-clock times.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var parseLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func FormatTimestamp(t time.Time) string { return t.Format(TimestampLayout) }

// ParseTimestamp accepts the ledger layout plus the ISO variants that
// clients tend to send.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range parseLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SameMinute compares two timestamps at minute precision. Unparseable
// values only match if their text is identical.
func SameMinute(a, b string) bool {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	if !okA || !okB {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return ta.Truncate(time.Minute).Equal(tb.Truncate(time.Minute))
}

// CompareTimestamps orders parseable timestamps chronologically. Values
// that do not parse sort after every parseable one, in text order among
// themselves.
func CompareTimestamps(a, b string) int {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}
