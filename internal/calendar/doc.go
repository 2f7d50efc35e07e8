// Package calendar provides a client for the Google Calendar v3 API and the
// plain-text renderings returned by the calendar MCP tools.
//
// Times are passed through as strings. A value of exactly ten characters
// (YYYY-MM-DD) is a date: range queries widen it to midnight UTC, and event
// boundaries use the all-day "date" form for it.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, "default", httpClient)
//	if err != nil {
//	    return err
//	}
//	events, err := client.ListEvents(ctx, calendar.ListEventsOptions{
//	    TimeMin: "2026-02-28",
//	    TimeMax: "2026-03-01",
//	})
package calendar
