package google

import (
	"slices"

	"github.com/samber/lo"
	calendar "google.golang.org/api/calendar/v3"
	tasks "google.golang.org/api/tasks/v1"
)

// DefaultOAuthScopes are the only scopes gapi ever requests.
//
//   - calendar: read and write all calendars
//   - calendar.events: read and write events
//   - tasks: read and write task lists and tasks
var DefaultOAuthScopes = []string{
	calendar.CalendarScope,
	calendar.CalendarEventsScope,
	tasks.TasksScope,
}

// Scopes returns a copy of DefaultOAuthScopes.
func Scopes() []string {
	return slices.Clone(DefaultOAuthScopes)
}

// MissingScopes returns the default scopes not present in granted.
func MissingScopes(granted []string) []string {
	return lo.Without(DefaultOAuthScopes, granted...)
}
