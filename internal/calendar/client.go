package calendar

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	account string // The account this client is associated with
	now     func() time.Time
}

// NewClient creates a Calendar client for account. httpClient must already
// authorize requests; extra options (such as an endpoint override) are
// appended.
func NewClient(ctx context.Context, account string, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:     svc,
		account: account,
		now:     time.Now,
	}, nil
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// ListCalendars lists the calendars on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]CalendarInfo, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, toCalendarInfo(item))
	}
	return calendars, nil
}

// ListEvents lists single events between TimeMin and TimeMax ordered by start
// time. Date-only bounds are widened to midnight UTC.
func (c *Client) ListEvents(ctx context.Context, opts ListEventsOptions) ([]Event, error) {
	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = PrimaryCalendarID
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxEvents
	}

	call := c.svc.Events.List(calendarID).
		TimeMin(NormalizeTime(opts.TimeMin)).
		TimeMax(NormalizeTime(opts.TimeMax)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime")
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	result, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	ev, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	result := toEvent(ev)
	return &result, nil
}

// CreateEvent creates an event. A date-only start makes the event all-day,
// in which case both boundaries use the date form.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	allDay := IsDate(input.Start)
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       eventTime(input.Start, allDay, input.TimeZone),
		End:         eventTime(input.End, allDay, input.TimeZone),
		Attendees:   attendees(input.Attendees),
	}

	call := c.svc.Events.Insert(calendarID, event)
	if input.AddMeet {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: c.meetRequestID(),
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	result := toEvent(created)
	return &result, nil
}

// ModifyEvent fetches an event, applies patch and writes the full event back.
func (c *Client) ModifyEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (*Event, error) {
	existing, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	if patch.Summary != nil {
		existing.Summary = *patch.Summary
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Location != nil {
		existing.Location = *patch.Location
	}
	if patch.Attendees != nil {
		existing.Attendees = attendees(*patch.Attendees)
		if len(existing.Attendees) == 0 {
			existing.NullFields = append(existing.NullFields, "Attendees")
		}
	}
	if patch.Start != nil {
		existing.Start = eventTime(*patch.Start, IsDate(*patch.Start), patch.TimeZone)
	}
	if patch.End != nil {
		existing.End = eventTime(*patch.End, IsDate(*patch.End), patch.TimeZone)
	}

	updated, err := c.svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	result := toEvent(updated)
	return &result, nil
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// FreeBusy queries busy periods for calendarIDs (default: the primary
// calendar). Results follow the requested order; calendars the API adds on
// its own are appended sorted by ID.
func (c *Client) FreeBusy(ctx context.Context, timeMin, timeMax string, calendarIDs []string) ([]FreeBusyInfo, error) {
	if len(calendarIDs) == 0 {
		calendarIDs = []string{PrimaryCalendarID}
	}

	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	result, err := c.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: NormalizeTime(timeMin),
		TimeMax: NormalizeTime(timeMax),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	order := make([]string, 0, len(result.Calendars))
	seen := make(map[string]bool, len(result.Calendars))
	for _, id := range calendarIDs {
		if _, ok := result.Calendars[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	var extra []string
	for id := range result.Calendars {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	infos := make([]FreeBusyInfo, 0, len(order))
	for _, id := range order {
		cal := result.Calendars[id]
		info := FreeBusyInfo{Calendar: id}
		for _, busy := range cal.Busy {
			if busy == nil {
				continue
			}
			info.Busy = append(info.Busy, TimeRange{Start: busy.Start, End: busy.End})
		}
		for _, e := range cal.Errors {
			if e != nil {
				info.Errors = append(info.Errors, e.Reason)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (c *Client) meetRequestID() string {
	return "meet-" + c.now().UTC().Format("20060102150405")
}

func attendees(emails []string) []*calendar.EventAttendee {
	if len(emails) == 0 {
		return nil
	}
	out := make([]*calendar.EventAttendee, 0, len(emails))
	for _, email := range emails {
		out = append(out, &calendar.EventAttendee{Email: email})
	}
	return out
}
