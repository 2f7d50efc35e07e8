package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

type getEventsArgs struct {
	TimeMin    string `mapstructure:"time_min" validate:"required"`
	TimeMax    string `mapstructure:"time_max" validate:"required"`
	CalendarID string `mapstructure:"calendar_id"`
	Query      string `mapstructure:"query"`
	MaxResults int64  `mapstructure:"max_results" validate:"omitempty,min=1,max=2500"`
}

type createEventArgs struct {
	Summary     string   `mapstructure:"summary" validate:"required"`
	Start       string   `mapstructure:"start" validate:"required"`
	End         string   `mapstructure:"end" validate:"required"`
	Description string   `mapstructure:"description"`
	Location    string   `mapstructure:"location"`
	Attendees   []string `mapstructure:"attendees"`
	TimeZone    string   `mapstructure:"timezone"`
	AddMeet     bool     `mapstructure:"add_meet"`
	CalendarID  string   `mapstructure:"calendar_id"`
}

type modifyEventArgs struct {
	EventID     string    `mapstructure:"event_id" validate:"required"`
	Summary     *string   `mapstructure:"summary"`
	Start       *string   `mapstructure:"start"`
	End         *string   `mapstructure:"end"`
	Description *string   `mapstructure:"description"`
	Location    *string   `mapstructure:"location"`
	Attendees   *[]string `mapstructure:"attendees"`
	TimeZone    string    `mapstructure:"timezone"`
	CalendarID  string    `mapstructure:"calendar_id"`
}

type deleteEventArgs struct {
	EventID    string `mapstructure:"event_id" validate:"required"`
	CalendarID string `mapstructure:"calendar_id"`
}

func eventTools(sc *server.ServerContext) []common.Tool {
	getEventsTool := mcp.NewTool("get_events",
		mcp.WithDescription("Get calendar events in a time range."),
		common.WithAccount(),
		mcp.WithString("time_min",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, e.g. '2026-02-28T00:00:00Z' or '2026-02-28')"),
		),
		mcp.WithString("time_max",
			mcp.Required(),
			mcp.Description("End time (RFC3339, e.g. '2026-02-28T23:59:59Z' or '2026-03-01')"),
		),
		withCalendarID(),
		mcp.WithString("query",
			mcp.Description("Optional keyword search in event fields"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum events to return (default: 25)"),
			mcp.DefaultNumber(calendar.DefaultMaxEvents),
			mcp.Min(1),
			mcp.Max(2500),
		),
		mcp.WithTitleAnnotation("Get events"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	createEventTool := mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event."),
		common.WithAccount(),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, e.g. '2026-02-28T10:00:00+01:00' or '2026-02-28' for all-day)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339, e.g. '2026-02-28T11:00:00+01:00' or '2026-03-01' for all-day)"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithArray("attendees",
			mcp.Description("List of attendee email addresses"),
			mcp.WithStringItems(),
		),
		mcp.WithString("timezone",
			mcp.Description("Timezone (e.g. 'Europe/Amsterdam')"),
		),
		mcp.WithBoolean("add_meet",
			mcp.Description("Whether to add a Google Meet link"),
			mcp.DefaultBool(false),
		),
		withCalendarID(),
		mcp.WithTitleAnnotation("Create event"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	modifyEventTool := mcp.NewTool("modify_event",
		mcp.WithDescription("Update fields on an existing calendar event. Only provided fields are changed."),
		common.WithAccount(),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("The event ID to modify"),
		),
		mcp.WithString("summary",
			mcp.Description("New event title"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339)"),
		),
		mcp.WithString("end",
			mcp.Description("New end time (RFC3339)"),
		),
		mcp.WithString("description",
			mcp.Description("New description"),
		),
		mcp.WithString("location",
			mcp.Description("New location"),
		),
		mcp.WithArray("attendees",
			mcp.Description("New attendee email list (replaces existing)"),
			mcp.WithStringItems(),
		),
		mcp.WithString("timezone",
			mcp.Description("Timezone for start/end"),
		),
		withCalendarID(),
		mcp.WithTitleAnnotation("Modify event"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	deleteEventTool := mcp.NewTool("delete_event",
		mcp.WithDescription("Delete a calendar event."),
		common.WithAccount(),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("The event ID to delete"),
		),
		withCalendarID(),
		mcp.WithTitleAnnotation("Delete event"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	return []common.Tool{
		{Tool: getEventsTool, Handler: handleGetEvents(sc), Service: instrumentation.ServiceCalendar, Operation: "list_events"},
		{Tool: createEventTool, Handler: handleCreateEvent(sc), Service: instrumentation.ServiceCalendar, Operation: "create_event", Write: true},
		{Tool: modifyEventTool, Handler: handleModifyEvent(sc), Service: instrumentation.ServiceCalendar, Operation: "modify_event", Write: true},
		{Tool: deleteEventTool, Handler: handleDeleteEvent(sc), Service: instrumentation.ServiceCalendar, Operation: "delete_event", Write: true},
	}
}

func handleGetEvents(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getEventsArgs{MaxResults: calendar.DefaultMaxEvents}
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}
		calendarID := calendarIDOrPrimary(args.CalendarID)

		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var events []calendar.Event
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "list_events", func(ctx context.Context) error {
			var err error
			events, err = client.ListEvents(ctx, calendar.ListEventsOptions{
				CalendarID: calendarID,
				TimeMin:    args.TimeMin,
				TimeMax:    args.TimeMax,
				Query:      args.Query,
				MaxResults: args.MaxResults,
			})
			return err
		}, attribute.String(instrumentation.SpanAttrCalendarID, calendarID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatEvents(events)), nil
	}
}

func handleCreateEvent(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args createEventArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}
		calendarID := calendarIDOrPrimary(args.CalendarID)

		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var created *calendar.Event
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "create_event", func(ctx context.Context) error {
			var err error
			created, err = client.CreateEvent(ctx, calendarID, calendar.EventInput{
				Summary:     args.Summary,
				Start:       args.Start,
				End:         args.End,
				Description: args.Description,
				Location:    args.Location,
				Attendees:   args.Attendees,
				TimeZone:    args.TimeZone,
				AddMeet:     args.AddMeet,
			})
			return err
		}, attribute.String(instrumentation.SpanAttrCalendarID, calendarID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatCreated(created)), nil
	}
}

func handleModifyEvent(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args modifyEventArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}
		calendarID := calendarIDOrPrimary(args.CalendarID)

		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var updated *calendar.Event
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "modify_event", func(ctx context.Context) error {
			var err error
			updated, err = client.ModifyEvent(ctx, calendarID, args.EventID, calendar.EventPatch{
				Summary:     args.Summary,
				Start:       args.Start,
				End:         args.End,
				Description: args.Description,
				Location:    args.Location,
				Attendees:   args.Attendees,
				TimeZone:    args.TimeZone,
			})
			return err
		}, attribute.String(instrumentation.SpanAttrCalendarID, calendarID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatUpdated(updated)), nil
	}
}

func handleDeleteEvent(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args deleteEventArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}
		calendarID := calendarIDOrPrimary(args.CalendarID)

		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "delete_event", func(ctx context.Context) error {
			return client.DeleteEvent(ctx, calendarID, args.EventID)
		}, attribute.String(instrumentation.SpanAttrCalendarID, calendarID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatDeleted(args.EventID)), nil
	}
}
