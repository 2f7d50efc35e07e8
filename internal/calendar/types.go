package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

// PrimaryCalendarID is the alias for the user's primary calendar.
const PrimaryCalendarID = "primary"

// Event is the subset of a calendar event the tools report.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	HTMLLink    string
	// Start and End hold the RFC 3339 dateTime, or the date for all-day events.
	Start     string
	End       string
	Attendees []string
	MeetLink  string
}

// CalendarInfo represents an entry of the user's calendar list.
type CalendarInfo struct {
	ID         string
	Summary    string
	TimeZone   string
	Primary    bool
	AccessRole string // "owner", "writer", "reader", "freeBusyReader"
}

// FreeBusyInfo represents availability information for a calendar.
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	Errors   []string
}

// TimeRange is a busy period as reported by the API.
type TimeRange struct {
	Start string
	End   string
}

// ListEventsOptions selects the events returned by ListEvents.
type ListEventsOptions struct {
	CalendarID string
	TimeMin    string
	TimeMax    string
	Query      string
	MaxResults int64
}

// DefaultMaxEvents is used when ListEventsOptions.MaxResults is zero.
const DefaultMaxEvents = 25

// EventInput describes a new event.
type EventInput struct {
	Summary     string
	Start       string
	End         string
	Description string
	Location    string
	Attendees   []string
	// TimeZone applies to timed boundaries only.
	TimeZone string
	// AddMeet requests a Google Meet conference for the event.
	AddMeet bool
}

// EventPatch lists the fields to change on an existing event. Nil fields are
// left untouched; a non-nil Attendees replaces the attendee list.
type EventPatch struct {
	Summary     *string
	Start       *string
	End         *string
	Description *string
	Location    *string
	Attendees   *[]string
	TimeZone    string
}

func toEvent(e *calendar.Event) Event {
	if e == nil {
		return Event{}
	}

	ev := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HtmlLink,
		Start:       boundary(e.Start),
		End:         boundary(e.End),
	}
	for _, a := range e.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}
	if e.HangoutLink != "" {
		ev.MeetLink = e.HangoutLink
	} else if e.ConferenceData != nil {
		for _, ep := range e.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" {
				ev.MeetLink = ep.Uri
				break
			}
		}
	}
	return ev
}

func boundary(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:         entry.Id,
		Summary:    entry.Summary,
		TimeZone:   entry.TimeZone,
		Primary:    entry.Primary,
		AccessRole: entry.AccessRole,
	}
}
