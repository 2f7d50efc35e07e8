package calendar

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Messages for empty results.
const (
	NoCalendarsMessage = "No calendars found."
	NoEventsMessage    = "No events found in the specified range."
	NoFreeBusyMessage  = "No calendars returned."
)

// FormatEvent renders an event as an indented bullet.
func FormatEvent(e Event) string {
	parts := []string{
		"- " + orDefault(e.Summary, "(no title)"),
		"  Start: " + orDefault(e.Start, "?"),
		"  End: " + orDefault(e.End, "?"),
		"  ID: " + e.ID,
	}
	if e.HTMLLink != "" {
		parts = append(parts, "  Link: "+e.HTMLLink)
	}
	if e.Location != "" {
		parts = append(parts, "  Location: "+e.Location)
	}
	return strings.Join(parts, "\n")
}

// FormatEvents renders events separated by blank lines.
func FormatEvents(events []Event) string {
	if len(events) == 0 {
		return NoEventsMessage
	}
	return strings.Join(lo.Map(events, func(e Event, _ int) string {
		return FormatEvent(e)
	}), "\n\n")
}

// FormatCalendars renders the calendar list.
func FormatCalendars(calendars []CalendarInfo) string {
	if len(calendars) == 0 {
		return NoCalendarsMessage
	}
	return strings.Join(lo.Map(calendars, func(c CalendarInfo, _ int) string {
		primary := ""
		if c.Primary {
			primary = " (primary)"
		}
		return fmt.Sprintf("- %s%s\n  ID: %s", orDefault(c.Summary, "?"), primary, orDefault(c.ID, "?"))
	}), "\n")
}

// FormatFreeBusy renders one block per calendar: either "<id>: Free" or the
// busy periods.
func FormatFreeBusy(infos []FreeBusyInfo) string {
	var lines []string
	for _, info := range infos {
		if len(info.Busy) == 0 {
			lines = append(lines, info.Calendar+": Free")
			continue
		}
		lines = append(lines, info.Calendar+":")
		for _, b := range info.Busy {
			lines = append(lines, fmt.Sprintf("  Busy: %s → %s", b.Start, b.End))
		}
	}
	if len(lines) == 0 {
		return NoFreeBusyMessage
	}
	return strings.Join(lines, "\n")
}

// FormatCreated is the confirmation returned after creating an event.
func FormatCreated(e *Event) string {
	return fmt.Sprintf("Event created: %s\nLink: %s\nID: %s", e.Summary, e.HTMLLink, e.ID)
}

// FormatUpdated is the confirmation returned after modifying an event.
func FormatUpdated(e *Event) string {
	return fmt.Sprintf("Event updated: %s\nLink: %s", e.Summary, e.HTMLLink)
}

// FormatDeleted is the confirmation returned after deleting an event.
func FormatDeleted(eventID string) string {
	return fmt.Sprintf("Event %s deleted.", eventID)
}

func orDefault(s, def string) string {
	return lo.Ternary(s == "", def, s)
}
