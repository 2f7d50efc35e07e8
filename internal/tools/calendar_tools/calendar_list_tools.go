package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

func calendarListTools(sc *server.ServerContext) []common.Tool {
	listCalendarsTool := mcp.NewTool("list_calendars",
		mcp.WithDescription("List all calendars accessible to the user."),
		common.WithAccount(),
		mcp.WithTitleAnnotation("List calendars"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	return []common.Tool{{
		Tool:      listCalendarsTool,
		Handler:   handleListCalendars(sc),
		Service:   instrumentation.ServiceCalendar,
		Operation: "list_calendars",
	}}
}

func handleListCalendars(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var calendars []calendar.CalendarInfo
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "list_calendars", func(ctx context.Context) error {
			var err error
			calendars, err = client.ListCalendars(ctx)
			return err
		})
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatCalendars(calendars)), nil
	}
}
