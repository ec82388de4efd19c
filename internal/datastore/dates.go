package datastore

import (
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
)

// dateRange holds parsed calendar bounds. A nil bound is unbounded.
type dateRange struct {
	start *time.Time // 00:00:00 of the first day
	end   *time.Time // 23:59:59 of the last day
}

// parseDateRange parses inclusive calendar bounds in loc. Malformed input is
// ignored, leaving that side open.
func parseDateRange(start, end string, loc *time.Location) dateRange {
	var r dateRange
	if t, ok := parseDate(start, loc); ok {
		r.start = &t
	}
	if t, ok := parseDate(end, loc); ok {
		last := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
		r.end = &last
	}
	return r
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// epochToTimestamp renders epoch seconds as a UTC timestamp string.
func epochToTimestamp(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(timestampLayout)
}

// legacyTimestamp joins the legacy date and time columns. An empty time maps
// to midnight; a date that does not parse is passed through verbatim.
func legacyTimestamp(date, clock string) string {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return date + "T00:00:00Z"
	}
	if clock == "" {
		return date + "T00:00:00Z"
	}
	if len(clock) > 8 {
		clock = clock[:8]
	}
	return date + "T" + clock + "Z"
}
