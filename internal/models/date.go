package models

import "time"

// DateFormat is the canonical wire format for calendar dates.
const DateFormat = "2006-01-02"

// DateOnly strips the time-of-day component, keeping the location.
// Bookings are matched by date component only, never by full timestamp.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a YYYY-MM-DD string into a date-only value.
func ParseDate(v string) (time.Time, error) {
	return time.Parse(DateFormat, v)
}

// FormatDate renders a date-only string for keys and wire payloads.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}
