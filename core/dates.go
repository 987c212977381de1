package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayDateLayout is the day-first layout used in search results.
const DisplayDateLayout = "02/01/2006 15:04"

// ISOLayout is the layout used for IngestedAt values written by this module.
const ISOLayout = "2006-01-02T15:04:05.000000"

var epochPattern = regexp.MustCompile(`^\d{10,13}$`)

// timestampLayouts are tried in order. Naive layouts are read in local time.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses the timestamp formats seen in news feeds: 10 to 13
// digit epoch values (13 digits are milliseconds), common day-first and ISO
// dates, and RSS dates. Zoned values are converted to local time.
func ParseTimestamp(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}

	if epochPattern.MatchString(v) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			if len(v) == 13 {
				n /= 1000
			}
			return time.Unix(n, 0).In(time.Local), true
		}
	}

	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, v, time.Local)
		if err == nil {
			return t.In(time.Local), true
		}
	}

	return time.Time{}, false
}

// FormatDisplayDate renders t for result lists; the zero time renders empty.
func FormatDisplayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayDateLayout)
}

// FormatISO renders t in the layout used for IngestedAt.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}
