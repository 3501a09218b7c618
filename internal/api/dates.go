package api

import (
	"fmt"
	"time"
)

const dateOnly = "2006-01-02"

// ParseDate reads an ISO-8601 date or instant and returns its calendar day,
// as seen in the instant's own offset, at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: not ISO-8601", s)
}

// FormatDate is the wire form of a calendar day.
func FormatDate(t time.Time) string {
	return Day(t).Format(time.RFC3339)
}

// Day truncates t to its calendar day in t's own location, returned as
// midnight UTC so days compare with Equal and Before.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
