package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

const dateLen = len("2006-01-02")

// IsDate reports whether s is a date-only value (YYYY-MM-DD).
func IsDate(s string) bool {
	return len(s) == dateLen
}

// NormalizeTime widens a date-only value to midnight UTC so it can be used as
// an RFC 3339 range bound. Other values are returned unchanged.
func NormalizeTime(s string) string {
	if IsDate(s) {
		return s + "T00:00:00Z"
	}
	return s
}

// eventTime builds an event boundary. Dates produce all-day boundaries; the
// time zone only applies to timed ones.
func eventTime(value string, allDay bool, timeZone string) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: value}
	}
	return &calendar.EventDateTime{DateTime: value, TimeZone: timeZone}
}
